// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/kuroko-lang/kuroko"
)

const (
	title         = "Kuroko"
	promptPrefix  = ">>> "
	promptPrefix2 = "  > "
)

var (
	stressGC    bool
	disassemble bool
	traceFile   string
	modulePath  string
)

func main() {
	flag.BoolVar(&stressGC, "gcstress", false, "collect on every allocation")
	flag.BoolVar(&disassemble, "d", false, "disassemble instead of executing")
	flag.StringVar(&traceFile, "trace", "", "write call trace lines to file")
	flag.StringVar(&modulePath, "M", "", "extra module search path")
	flag.Parse()

	var flags kuroko.Flags
	if stressGC {
		flags |= kuroko.FlagStressGC
	}
	vm := kuroko.New(flags)
	defer vm.Shutdown()

	if modulePath != "" {
		if !strings.HasSuffix(modulePath, string(os.PathSeparator)) {
			modulePath += string(os.PathSeparator)
		}
		vm.SetModulePaths([]string{"./", modulePath})
	}

	if traceFile != "" {
		f, err := os.Create(traceFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		vm.TraceWriter = f
	}

	if flag.NArg() > 0 {
		os.Exit(runFile(vm, flag.Arg(0)))
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) {
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if _, err := vm.Interpret(string(src), "<stdin>"); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	runREPL(vm)
}

func runFile(vm *kuroko.VM, fileName string) int {
	src, err := os.ReadFile(fileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kuroko: could not read file '%s': %v\n", fileName, err)
		return 1
	}
	if disassemble {
		fn, err := vm.Compile(string(src), fileName)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		kuroko.DisassembleChunk(os.Stdout, fn, fileName)
		return 0
	}
	if _, err := vm.Interpret(string(src), fileName); err != nil {
		// The interpreter already printed a traceback.
		return 1
	}
	return 0
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kuroko_history")
}

// runREPL reads statements interactively; a line ending in a colon starts a
// block that continues until a blank line.
func runREPL(vm *kuroko.VM) {
	fmt.Printf("%s %s\n", title, kuroko.Version)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if hf := historyFile(); hf != "" {
		if f, err := os.Open(hf); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(hf); err == nil {
				_, _ = line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	var block []string
	for {
		prompt := promptPrefix
		if len(block) > 0 {
			prompt = promptPrefix2
		}
		input, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			block = block[:0]
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		if len(block) == 0 && strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		block = append(block, input)
		if continuesBlock(input) && strings.TrimSpace(input) != "" {
			continue
		}
		if len(block) > 1 && strings.TrimSpace(input) != "" {
			continue
		}

		src := strings.Join(block, "\n")
		block = block[:0]
		result, err := vm.Interpret(src, "<stdin>")
		if err != nil {
			continue
		}
		if !result.IsNone() {
			fmt.Println(result.String())
		}
	}
}

// continuesBlock reports whether the line opens an indented block.
func continuesBlock(input string) bool {
	trimmed := strings.TrimRight(input, " \t")
	return strings.HasSuffix(trimmed, ":") || strings.HasPrefix(input, " ") || strings.HasPrefix(input, "\t")
}
