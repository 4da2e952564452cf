// Package bytecode is the compile environment for tickle scripts: the
// growable code buffer that command and expression compilers write into,
// and the frozen ByteCode it produces.
//
// The instruction format is an opcode byte followed by fixed-width
// operands. Literal indices, local slots, invocation counts and jump
// distances each have a 1-byte and a 4-byte form; the short forms are a
// density optimization and always have an equivalent long form.
//
// # Architecture Overview
//
// The package consists of several components:
//
//   - Opcodes: the instruction set and its info table (name, operand
//     encodings, stack effect). Stack effects drive the depth tracker, so
//     every emit keeps MaxStackDepth exact.
//
//   - Env: the mutable compile environment. It owns the code buffer, the
//     de-duplicating literal pool with per-entry reference counts, the
//     optional LocalTable of a procedure frame, labels, exception ranges
//     and aux data.
//
//   - Labels and fixups: jump targets are Labels, indices into a table of
//     offsets. A jump to an unbound label is emitted in its 1-byte form and
//     patched when the label is marked. If the distance does not fit, the
//     jump is widened in place: three bytes are inserted and every label
//     and jump after it moves, then every resolved jump is re-patched.
//     Exception range boundaries, jump table targets and command locations
//     are all labels, so nothing recorded goes stale.
//
//   - ByteCode: the frozen unit built by Env.Build, with a disassembler
//     and a canonical CBOR wire form.
//
// # Exception Ranges
//
// Loop and catch ranges nest in strict stack order. A range records its
// body span plus the break, continue or catch target; offsets a range kind
// does not use are -1. The executor consults the table when a break,
// continue or error escapes an instruction.
//
// # Checkpoints
//
// A construct compiler that may decline after emitting takes a Checkpoint
// first and calls Rollback to leave the environment exactly as it was.
package bytecode
