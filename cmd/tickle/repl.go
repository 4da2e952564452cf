package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/tickle/compiler"
	"github.com/chazu/tickle/pkg/parser"
	"github.com/chazu/tickle/vm"
)

const (
	historyFile = ".tickle_history"
	promptMain  = "% "
	promptCont  = "> "
)

const replHelp = `REPL commands:
  :quit            Exit the REPL
  :help            Show this help
  :disasm SCRIPT   Print the bytecode of SCRIPT
  :commands        List the available commands
  :cache           Show compile cache statistics
`

func (a *app) cmdRepl(_ []string) int {
	in, closeCache, err := a.newInterp(a.stdout)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	defer closeCache()

	fmt.Fprintf(a.stdout, "tickle %s\nCtrl+C cancels input, Ctrl+D exits. Type :help for commands.\n", version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		return completeLine(line, in.Commands())
	})

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		code, ok := readScript(ln.Prompt)
		if !ok {
			fmt.Fprintln(a.stdout)
			return 0
		}
		if strings.TrimSpace(code) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		if a.evalLine(in, code) {
			return 0
		}
	}
}

// readScript prompts until the accumulated input is a complete script.
// It returns false at end of input.
func readScript(prompt func(string) (string, error)) (string, bool) {
	var b strings.Builder
	for {
		p := promptMain
		if b.Len() > 0 {
			p = promptCont
		}
		line, err := prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if parser.IsComplete(b.String()) {
			return b.String(), true
		}
	}
}

// evalLine runs one REPL entry and reports whether the session should end.
func (a *app) evalLine(in *vm.Interp, code string) bool {
	trimmed := strings.TrimSpace(code)
	if strings.HasPrefix(trimmed, ":") {
		cmd, arg, _ := strings.Cut(trimmed, " ")
		switch cmd {
		case ":quit", ":q":
			return true
		case ":help":
			fmt.Fprint(a.stdout, replHelp)
		case ":disasm":
			bc, err := compiler.Compile(arg, a.compilerOptions(false)...)
			if err != nil {
				a.reportError("-", err)
				break
			}
			fmt.Fprint(a.stdout, bc.Disassemble())
		case ":commands":
			fmt.Fprintln(a.stdout, strings.Join(in.Commands(), " "))
		case ":cache":
			st := in.Cache().Stats()
			fmt.Fprintf(a.stdout, "units %d, hits %d, misses %d, compiled %d\n",
				in.Cache().Len(), st.Hits, st.Misses, st.Compiled)
		default:
			fmt.Fprintf(a.stdout, "unknown command %s. Type :help for commands.\n", cmd)
		}
		return false
	}

	res, err := in.Eval(code)
	if err != nil {
		a.reportError("-", err)
		return false
	}
	if res != "" {
		fmt.Fprintln(a.stdout, res)
	}
	return false
}

// completeLine completes the command name being typed at the end of line.
func completeLine(line string, commands []string) []string {
	start := strings.LastIndexAny(line, " \t[;{") + 1
	prefix := line[start:]
	if prefix == "" {
		return nil
	}
	var out []string
	for _, name := range commands {
		if strings.HasPrefix(name, prefix) {
			out = append(out, line[:start]+name)
		}
	}
	return out
}
