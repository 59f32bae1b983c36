// Command microjs is the embedder CLI around pkg/engine: run a source
// file, drop into an interactive REPL, compile source to the §6.1
// bytecode container format, or disassemble a compiled file. It
// replaces smog's hand-rolled `switch os.Args[1]` dispatcher with
// urfave/cli (the command library go-ethereum's and go-probe's own
// cmd/geth reach for) and smog's bufio.Scanner REPL loop with
// peterh/liner (the same pair geth's internal/jsre console uses).
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"microjs/pkg/bytecode"
	"microjs/pkg/compiler"
	"microjs/pkg/engine"
	"microjs/pkg/lexer"
	"microjs/pkg/parser"
	"microjs/pkg/vm"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "microjs",
		Usage:   "an embeddable JavaScript execution core",
		Version: version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "heap-size",
				Usage: "arena size in bytes",
				Value: 1 << 20,
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "enable verbose diagnostic logging",
			},
		},
		Commands: []*cli.Command{
			runCommand,
			replCommand,
			compileCommand,
			disasmCommand,
		},
		Action: func(c *cli.Context) error {
			// Bare `microjs <file>`, matching smog's default-to-run behavior.
			if c.NArg() == 0 {
				return cli.ShowAppHelp(c)
			}
			return runFile(c, c.Args().First())
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "microjs: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) *zap.Logger {
	if !c.Bool("trace") {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newEngine(c *cli.Context) (*engine.Engine, error) {
	opts := engine.Default()
	if n := c.Int("heap-size"); n > 0 {
		opts.HeapBytes = n
	}
	opts.Logger = newLogger(c)
	return engine.New(opts)
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "execute a source file",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "debug", Usage: "attach an interactive step debugger"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("run: no file specified", 1)
		}
		return runFile(c, c.Args().First())
	},
}

func runFile(c *cli.Context, filename string) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %v", filename, err), 1)
	}

	e, err := newEngine(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("debug") {
		dbg := vm.NewDebugger(e.VM(), os.Stdin, os.Stdout)
		dbg.Enable()
		e.VM().Debugger = dbg
	}

	result, err := e.Eval(string(src))
	if err != nil {
		return reportEvalError(e, err)
	}
	if !result.IsUndefined() {
		s, _ := e.ToString(result)
		fmt.Println(s)
	}
	return nil
}

// reportEvalError prints a parse/compile/runtime failure the way the
// three-stage error model (§7) distinguishes them, then exits non-zero
// — a RuntimeError's message for host-level failures, the thrown
// value's string form for an uncaught script exception.
func reportEvalError(e *engine.Engine, err error) error {
	evalErr, ok := err.(*engine.EvalError)
	if !ok {
		return cli.Exit(err.Error(), 1)
	}
	switch evalErr.Stage {
	case "runtime":
		if !evalErr.Value.IsUndefined() {
			s, convErr := e.ToString(evalErr.Value)
			if convErr == nil {
				return cli.Exit(fmt.Sprintf("uncaught exception: %s", s), 1)
			}
		}
		return cli.Exit(fmt.Sprintf("runtime error: %v", evalErr.Err), 1)
	default:
		return cli.Exit(fmt.Sprintf("%s error: %v", evalErr.Stage, evalErr.Err), 1)
	}
}

var replCommand = &cli.Command{
	Name:   "repl",
	Usage:  "start an interactive read-eval-print loop",
	Action: func(c *cli.Context) error { return runREPL(c) },
}

var compileCommand = &cli.Command{
	Name:      "compile",
	Usage:     "compile a source file to a .mjb bytecode container",
	ArgsUsage: "<input.js> [output.mjb]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "dump-bytecode", Usage: "print the disassembly after compiling"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("compile: no input file specified", 1)
		}
		return compileFile(c, c.Args().Get(0), c.Args().Get(1))
	},
}

var disasmCommand = &cli.Command{
	Name:      "disasm",
	Usage:     "disassemble a compiled .mjb bytecode container",
	ArgsUsage: "<file.mjb>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "dump-heap", Usage: "also dump the context's root values via go-spew"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("disasm: no file specified", 1)
		}
		return disasmFile(c, c.Args().First())
	},
}

func compileFile(c *cli.Context, input, output string) error {
	container, err := compileSource(input)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if output == "" {
		output = withExt(input, ".mjb")
	}
	if err := os.WriteFile(output, container.Encode(), 0o644); err != nil {
		return cli.Exit(fmt.Sprintf("writing %s: %v", output, err), 1)
	}
	if c.Bool("dump-bytecode") {
		fmt.Print(container.Disassemble())
	}
	return nil
}

func disasmFile(c *cli.Context, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading %s: %v", filename, err), 1)
	}
	container, err := bytecode.Decode(data)
	if err != nil {
		return cli.Exit(fmt.Sprintf("decoding %s: %v", filename, err), 1)
	}
	vm.Disassemble(os.Stdout, container)
	if c.Bool("dump-heap") {
		e, err := newEngine(c)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		vm.DumpHeap(os.Stdout, e.Context())
	}
	return nil
}

// compileSource runs just the parse/compile stages (no execution), the
// static counterpart to engine.Eval's parse/compile/run pipeline.
func compileSource(filename string) (*bytecode.Container, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	p := parser.New(lexer.New(string(src)))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("parse error: %v", errs[0])
	}
	c := compiler.New()
	container, err := c.Compile(program)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}
	return container, nil
}

func withExt(path, ext string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i] + ext
		}
	}
	return path + ext
}
