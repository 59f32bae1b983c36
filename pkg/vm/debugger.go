package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"microjs/pkg/bytecode"
	"microjs/pkg/context"
	"microjs/pkg/value"
)

// Debugger provides interactive single-step debugging and ad hoc
// inspection of a running VM (`microjs run --debug`, `microjs disasm
// --dump-heap`). It sits beside runFrame rather than inside it: when
// enabled, runFrame calls beforeStep ahead of every opcode, which pauses
// for breakpoints/step mode and is otherwise a single nil check's worth
// of overhead for ordinary execution.
type Debugger struct {
	vm          *VM
	out         io.Writer
	in          *bufio.Scanner
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool
}

// NewDebugger attaches a debugger to vm, reading commands from in and
// writing output to out.
func NewDebugger(vm *VM, in io.Reader, out io.Writer) *Debugger {
	return &Debugger{
		vm:          vm,
		out:         out,
		in:          bufio.NewScanner(in),
		breakpoints: make(map[int]bool),
	}
}

// Enable activates the debugger; Disable lets execution run unimpeded.
func (d *Debugger) Enable()  { d.enabled = true }
func (d *Debugger) Disable() { d.enabled = false }

func (d *Debugger) SetStepMode(enabled bool) { d.stepMode = enabled }

func (d *Debugger) AddBreakpoint(pc int)    { d.breakpoints[pc] = true }
func (d *Debugger) RemoveBreakpoint(pc int) { delete(d.breakpoints, pc) }
func (d *Debugger) ClearBreakpoints()       { d.breakpoints = make(map[int]bool) }

// beforeStep is runFrame's hook: called with the not-yet-executed
// opcode at f.PC. It pauses for an interactive prompt when in step mode
// or at an installed breakpoint, and is a no-op otherwise.
func (d *Debugger) beforeStep(f *Frame, op bytecode.Opcode, operand int) {
	if !d.stepMode && !d.breakpoints[f.PC] {
		return
	}
	fmt.Fprintf(d.out, "\n-- paused in %s --\n", f.Name)
	d.showInstruction(f, op, operand)
	d.prompt(f)
}

func (d *Debugger) showInstruction(f *Frame, op bytecode.Opcode, operand int) {
	format := bytecode.FormatOf(op)
	if format == bytecode.FormatNone {
		fmt.Fprintf(d.out, "  %4d: %s\n", f.PC, bytecode.Name(op))
		return
	}
	fmt.Fprintf(d.out, "  %4d: %s %d\n", f.PC, bytecode.Name(op), operand)
}

// prompt runs the interactive command loop until a command resumes
// execution (continue/step/next) or quits the process outright.
func (d *Debugger) prompt(f *Frame) {
	for {
		fmt.Fprint(d.out, "debug> ")
		if !d.in.Scan() {
			d.enabled = false
			return
		}
		line := strings.TrimSpace(d.in.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.stepMode = false
			return
		case "step", "s", "next", "n":
			d.stepMode = true
			return
		case "stack", "st":
			d.showStack()
		case "locals", "l":
			d.showLocals(f)
		case "frames", "bt":
			d.showFrames()
		case "break", "b":
			if len(parts) < 2 {
				fmt.Fprintln(d.out, "usage: break <pc>")
				continue
			}
			pc, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Fprintln(d.out, "invalid pc")
				continue
			}
			d.AddBreakpoint(pc)
			fmt.Fprintf(d.out, "breakpoint set at %d\n", pc)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Fprintln(d.out, "usage: delete <pc>")
				continue
			}
			pc, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Fprintln(d.out, "invalid pc")
				continue
			}
			d.RemoveBreakpoint(pc)
		case "list", "ls":
			d.listInstructions(f)
		case "quit", "q":
			d.enabled = false
			return
		default:
			fmt.Fprintf(d.out, "unknown command %q (try help)\n", parts[0])
		}
	}
}

func (d *Debugger) printHelp() {
	fmt.Fprintln(d.out, `commands:
  help, h, ?        show this help
  continue, c       resume execution until the next breakpoint
  step, s, next, n  pause again after the next opcode
  stack, st         dump the value stack
  locals, l         dump the current frame's locals
  frames, bt        dump the call stack
  break <pc>, b     set a breakpoint at a bytecode offset
  delete <pc>, d    clear a breakpoint
  list, ls          disassemble the current frame's container
  quit, q           detach the debugger and run to completion`)
}

// showStack and showLocals use spew rather than fmt so tagged
// value.Value words print with their heap-kind tag resolved instead of
// as an opaque uint64, matching the "ad hoc inspection" use spew already
// gets from the disasm --dump-heap path.
func (d *Debugger) showStack() {
	fmt.Fprintln(d.out, "stack (top to bottom):")
	if len(d.vm.stack) == 0 {
		fmt.Fprintln(d.out, "  (empty)")
		return
	}
	for i := len(d.vm.stack) - 1; i >= 0; i-- {
		fmt.Fprintf(d.out, "  [%d] %s", i, spew.Sdump(d.vm.stack[i]))
	}
}

func (d *Debugger) showLocals(f *Frame) {
	fmt.Fprintln(d.out, "locals:")
	if len(f.Locals) == 0 {
		fmt.Fprintln(d.out, "  (none)")
		return
	}
	for i, v := range f.Locals {
		kind := "local"
		if i < f.ParamCount {
			kind = "param"
		}
		fmt.Fprintf(d.out, "  [%d %s] %s", i, kind, spew.Sdump(v))
	}
}

func (d *Debugger) showFrames() {
	fmt.Fprintln(d.out, "call stack (innermost first):")
	frames := d.vm.frames
	for i := len(frames) - 1; i >= 0; i-- {
		fr := frames[i]
		fmt.Fprintf(d.out, "  %s [pc=%d]\n", fr.Name, fr.PC)
	}
}

func (d *Debugger) listInstructions(f *Frame) {
	code := f.Container.Code
	pc := 0
	for pc < len(code) {
		op := bytecode.Opcode(code[pc])
		marker := "  "
		switch {
		case pc == f.PC:
			marker = "->"
		case d.breakpoints[pc]:
			marker = "* "
		}
		if bytecode.Reserved(op) {
			fmt.Fprintf(d.out, "%s %4d: %s (reserved)\n", marker, pc, bytecode.Name(op))
			pc++
			continue
		}
		format := bytecode.FormatOf(op)
		size := format.OperandSize()
		if pc+1+size > len(code) {
			fmt.Fprintf(d.out, "%s %4d: %s (truncated)\n", marker, pc, bytecode.Name(op))
			break
		}
		if format == bytecode.FormatNone {
			fmt.Fprintf(d.out, "%s %4d: %s\n", marker, pc, bytecode.Name(op))
		} else {
			operand := readOperand(code, pc+1, format)
			fmt.Fprintf(d.out, "%s %4d: %s %d\n", marker, pc, bytecode.Name(op), operand)
		}
		pc += 1 + size
	}
}

// Disassemble renders every instruction in c without needing a live
// Frame — the non-interactive path `microjs disasm` uses.
func Disassemble(out io.Writer, c *bytecode.Container) {
	code := c.Code
	pc := 0
	for pc < len(code) {
		op := bytecode.Opcode(code[pc])
		if bytecode.Reserved(op) {
			fmt.Fprintf(out, "%4d: %s (reserved)\n", pc, bytecode.Name(op))
			pc++
			continue
		}
		format := bytecode.FormatOf(op)
		size := format.OperandSize()
		if pc+1+size > len(code) {
			fmt.Fprintf(out, "%4d: %s (truncated)\n", pc, bytecode.Name(op))
			return
		}
		if format == bytecode.FormatNone {
			fmt.Fprintf(out, "%4d: %s\n", pc, bytecode.Name(op))
		} else {
			operand := readOperand(code, pc+1, format)
			fmt.Fprintf(out, "%4d: %s %d\n", pc, bytecode.Name(op), operand)
		}
		pc += 1 + size
	}
}

// DumpHeap writes a spew dump of every root value the Context currently
// exposes — the `disasm --dump-heap` inspection path.
func DumpHeap(out io.Writer, ctx *context.Context) {
	ctx.Walk(func(v value.Value) {
		spew.Fdump(out, v)
	})
}
