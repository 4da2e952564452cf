// Package server is the tickle language server. It publishes tokenizer and
// compiler diagnostics and answers completion, hover, definition and
// reference requests over LSP.
package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/tickle/compiler"
	"github.com/chazu/tickle/config"
	"github.com/chazu/tickle/pkg/parser"
	"github.com/chazu/tickle/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "tickle-lsp"

var errStopped = errors.New("server: worker stopped")

// LspServer bridges LSP editor features to the compiler and a tickle
// interpreter.
type LspServer struct {
	worker *Worker
	cfg    config.Compiler
	log    commonlog.Logger

	mu   sync.Mutex
	docs map[string]*Analysis // URI → latest analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates an LSP server. The interpreter supplies the known
// commands.
func NewLSP(in *vm.Interp, cfg config.Compiler) *LspServer {
	s := &LspServer{
		worker:  NewWorker(in),
		cfg:     cfg,
		log:     commonlog.GetLogger("tickle.server"),
		docs:    make(map[string]*Analysis),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

// Run serves LSP on stdio until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- Lifecycle ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.log.Info("tickle LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{":", "["},
	}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With full sync the last change holds the whole text.
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
		s.update(ctx, params.TextDocument.URI, whole.Text)
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update re-analyzes a document and publishes its diagnostics.
func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	a := s.analyze(text)

	s.mu.Lock()
	s.docs[string(uri)] = a
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(a),
	})
}

func (s *LspServer) analyze(text string) *Analysis {
	known, err := s.worker.Do(func(in *vm.Interp) any {
		names := make(map[string]bool)
		for _, name := range in.Commands() {
			names[name] = true
		}
		return names
	})
	if err != nil {
		s.log.Warningf("cannot list commands: %v", err)
		return Analyze(text, s.cfg, nil)
	}
	return Analyze(text, s.cfg, known.(map[string]bool))
}

func (s *LspServer) doc(uri protocol.DocumentUri) (*Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.docs[string(uri)]
	return a, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	a, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(a.Source, params.Position)
	if prefix == "" {
		return nil, nil
	}
	names, err := s.worker.Do(func(in *vm.Interp) any { return in.Commands() })
	if err != nil {
		return nil, err
	}
	return complete(a, names.([]string), prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	a, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(a.Source, params.Position)
	if word == "" {
		return nil, nil
	}
	known, err := s.worker.Do(func(in *vm.Interp) any {
		for _, name := range in.Commands() {
			if name == trimGlobal(word) {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, nil
	}
	return hover(a, word, known.(bool), s.cfg), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	a, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	def, ok := a.Procs[trimGlobal(extractWord(a.Source, params.Position))]
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{
		URI:   params.TextDocument.URI,
		Range: span(a.Source, def.Offset, def.Size),
	}}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	a, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := trimGlobal(extractWord(a.Source, params.Position))
	if word == "" {
		return nil, nil
	}
	var locations []protocol.Location
	for _, off := range References(a.Source, word) {
		locations = append(locations, protocol.Location{
			URI:   params.TextDocument.URI,
			Range: span(a.Source, off, len(word)),
		})
	}
	if def, ok := a.Procs[word]; ok && params.Context.IncludeDeclaration {
		locations = append(locations, protocol.Location{
			URI:   params.TextDocument.URI,
			Range: span(a.Source, def.Offset, def.Size),
		})
	}
	return locations, nil
}

// --- Feature logic ---

func complete(a *Analysis, commands []string, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(name, detail string, kind protocol.CompletionItemKind) {
		if seen[name] || !strings.HasPrefix(name, prefix) {
			return
		}
		seen[name] = true
		label := name
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	for _, def := range a.sortedProcs() {
		add(def.Name, "proc "+def.Name+" {"+def.Args+"}", protocol.CompletionItemKindFunction)
	}
	for _, name := range commands {
		detail := "command"
		if compiler.IsSpecialized(name) {
			detail = "command (compiled inline)"
		}
		add(name, detail, protocol.CompletionItemKindKeyword)
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func hover(a *Analysis, word string, known bool, cfg config.Compiler) *protocol.Hover {
	name := trimGlobal(word)
	var b strings.Builder

	if def, ok := a.Procs[name]; ok {
		fmt.Fprintf(&b, "**proc %s** `{%s}`\n\n", def.Name, def.Args)
		params, err := procParams(def.Args)
		if err == nil {
			bc, err := compiler.CompileProcBody(def.Body, params, compiler.WithConfig(cfg))
			if err == nil {
				fmt.Fprintf(&b, "%d bytes of bytecode, stack depth %d, %d locals\n\n",
					len(bc.Code), bc.MaxStackDepth, len(bc.Locals))
				b.WriteString("```\n")
				b.WriteString(bc.DisassembleWithName(def.Name))
				b.WriteString("```\n")
			}
		}
	} else if known {
		fmt.Fprintf(&b, "**%s**", name)
		if compiler.IsSpecialized(name) {
			b.WriteString(" is compiled inline when its arguments allow it")
		} else {
			b.WriteString(" is invoked at run time")
		}
		b.WriteString("\n")
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// --- Diagnostics ---

func diagnostics(a *Analysis) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	source := lspName
	for _, p := range a.Problems {
		severity := protocol.DiagnosticSeverityError
		if p.Severity == SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		out = append(out, protocol.Diagnostic{
			Range:    span(a.Source, p.Offset, p.Size),
			Severity: &severity,
			Source:   &source,
			Message:  p.Message,
		})
	}
	return out
}

// --- Text helpers ---

// position converts a byte offset to an LSP position.
func position(src string, offset int) protocol.Position {
	line, col := parser.Position(src, offset)
	return protocol.Position{
		Line:      protocol.UInteger(line - 1),
		Character: protocol.UInteger(col - 1),
	}
}

func span(src string, offset, size int) protocol.Range {
	end := offset + size
	if end > len(src) {
		end = len(src)
	}
	return protocol.Range{Start: position(src, offset), End: position(src, end)}
}

func isNameChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == ':'
}

// nameAt finds the run of name characters around the cursor. col is the
// cursor clamped to the line.
func nameAt(text string, pos protocol.Position) (line string, start, col, end int) {
	for n := uint32(0); n < pos.Line; n++ {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			return "", 0, 0, 0
		}
		text = text[i+1:]
	}
	line, _, _ = strings.Cut(text, "\n")
	col = min(int(pos.Character), len(line))
	start, end = col, col
	for start > 0 && isNameChar(rune(line[start-1])) {
		start--
	}
	for end < len(line) && isNameChar(rune(line[end])) {
		end++
	}
	return line, start, col, end
}

// extractPrefix returns the command-name fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	line, start, col, _ := nameAt(text, pos)
	return line[start:col]
}

// extractWord returns the name under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, start, _, end := nameAt(text, pos)
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
