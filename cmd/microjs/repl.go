package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"microjs/pkg/engine"
)

const historyFileName = ".microjs_history"

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFileName
	}
	return filepath.Join(home, historyFileName)
}

func readHistory() (*os.File, error) {
	return os.Open(historyPath())
}

func writeHistory() (*os.File, error) {
	return os.Create(historyPath())
}

// runREPL starts an interactive read-eval-print loop: a single Engine
// persists for the session (so variables and function declarations
// carry over between inputs, matching smog's own REPL persistence
// guarantee), driven by peterh/liner instead of smog's bufio.Scanner
// loop for history and line editing.
func runREPL(c *cli.Context) error {
	e, err := newEngine(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := readHistory(); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("microjs REPL v%s\n", version)
	fmt.Println("Type .help for help, .quit or Ctrl-D to exit")

	var buf strings.Builder
	for {
		prompt := "microjs> "
		if buf.Len() > 0 {
			prompt = "....... "
		}
		input, err := line.Prompt(prompt)
		if err != nil { // io.EOF (Ctrl-D) or liner.ErrPromptAborted (Ctrl-C)
			fmt.Println()
			break
		}

		if buf.Len() == 0 {
			switch strings.TrimSpace(input) {
			case ".quit", ".exit":
				goto done
			case ".help":
				printREPLHelp()
				continue
			case "":
				continue
			}
		}

		line.AppendHistory(input)
		buf.WriteString(input)
		buf.WriteString("\n")

		result, err := e.Eval(buf.String())
		if err != nil {
			// A parse failure keeps the buffer so the next line continues
			// the statement; a blank line gives up and reports the error.
			if evalErr, ok := err.(*engine.EvalError); ok && evalErr.Stage == "parse" && strings.TrimSpace(input) != "" {
				continue
			}
			buf.Reset()
			fmt.Println(reportREPLError(e, err))
			continue
		}
		buf.Reset()
		if !result.IsUndefined() {
			s, convErr := e.ToString(result)
			if convErr != nil {
				fmt.Printf("=> <unprintable: %v>\n", convErr)
				continue
			}
			fmt.Printf("=> %s\n", s)
		}
	}
done:

	if f, err := writeHistory(); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
	fmt.Println("Goodbye!")
	return nil
}

func reportREPLError(e *engine.Engine, err error) string {
	evalErr, ok := err.(*engine.EvalError)
	if !ok {
		return fmt.Sprintf("error: %v", err)
	}
	if evalErr.Stage == "runtime" && !evalErr.Value.IsUndefined() {
		if s, convErr := e.ToString(evalErr.Value); convErr == nil {
			return fmt.Sprintf("uncaught exception: %s", s)
		}
	}
	return fmt.Sprintf("%s error: %v", evalErr.Stage, evalErr.Err)
}

func printREPLHelp() {
	fmt.Println("Commands:")
	fmt.Println("  .help          show this help")
	fmt.Println("  .quit, .exit   leave the REPL")
	fmt.Println()
	fmt.Println("Anything else is evaluated as JavaScript; a statement left")
	fmt.Println("syntactically unterminated continues onto the next line.")
}
