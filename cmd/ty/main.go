// cmd/ty/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"ty/internal/compiler"
	tyerrors "ty/internal/errors"
	"ty/internal/module"
	"ty/internal/parser"
	"ty/internal/value"
	"ty/internal/vm"
)

const usage = `ty -- a dynamically-typed scripting language

usage:
  ty [flags] [script.ty]       run a script, or read from stdin if omitted
  ty check [flags] script.ty   parse and compile without running
  ty repl                      not supported by this build

flags:
  -I path       add a module search path (repeatable)
  --no-color    disable ANSI color in diagnostics
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "repl" {
		fmt.Fprintln(stderr, "ty: repl is not supported by this build")
		return 1
	}

	checkOnly := false
	rest := args
	if len(rest) > 0 && rest[0] == "check" {
		checkOnly = true
		rest = rest[1:]
	}

	var searchPaths []string
	noColor := false
	var scriptPath string
	for i := 0; i < len(rest); i++ {
		switch a := rest[i]; {
		case a == "-I":
			i++
			if i >= len(rest) {
				fmt.Fprintln(stderr, "ty: -I requires a path argument")
				return 2
			}
			searchPaths = append(searchPaths, rest[i])
		case strings.HasPrefix(a, "-I="):
			searchPaths = append(searchPaths, strings.TrimPrefix(a, "-I="))
		case a == "--no-color":
			noColor = true
		case a == "-h" || a == "--help":
			fmt.Fprint(stdout, usage)
			return 0
		case strings.HasPrefix(a, "-"):
			fmt.Fprintf(stderr, "ty: unrecognized flag %q\n", a)
			return 2
		default:
			if scriptPath != "" {
				fmt.Fprintln(stderr, "ty: at most one script path may be given")
				return 2
			}
			scriptPath = a
		}
	}

	color := !noColor && isatty.IsTerminal(os.Stderr.Fd())

	source, filePath, err := readSource(scriptPath)
	if err != nil {
		fmt.Fprintf(stderr, "ty: %v\n", err)
		return 1
	}

	tags := value.NewTagTable()
	var loader *module.Loader
	loader = module.NewLoader(func(src, fp, dotted string) (any, error) {
		return compileSource(src, fp, loader, tags)
	}, searchPaths...)

	art, cerr := compileSource(source, filePath, loader, tags)
	if cerr != nil {
		reportError(stderr, cerr, color)
		return 1
	}

	if checkOnly {
		return 0
	}

	interp := vm.New(loader, tags, stdout)
	if _, err := interp.RunModule(art, filePath); err != nil {
		reportError(stderr, err, color)
		return 1
	}
	return 0
}

// compileSource parses and compiles one module, returning a
// *compiler.ModuleArtifact (boxed as any, so it satisfies module.CompileFunc
// without this package depending back on module importing compiler).
func compileSource(src, filePath string, loader *module.Loader, tags *value.TagTable) (*compiler.ModuleArtifact, error) {
	prog, errs := parser.New(filePath, src).ParseProgram()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	art, errs := compiler.CompileModule(prog, filePath, filepath.Dir(filePath), tags, loader)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return art, nil
}

func readSource(scriptPath string) (source, filePath string, err error) {
	if scriptPath == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", scriptPath, err)
	}
	return string(data), scriptPath, nil
}

func reportError(w io.Writer, err error, color bool) {
	msg := err.Error()
	if !color {
		fmt.Fprintln(w, msg)
		return
	}
	const red, reset = "\x1b[31m", "\x1b[0m"
	if te, ok := err.(*tyerrors.TyError); ok {
		fmt.Fprintf(w, "%s%s%s\n", red, te.Error(), reset)
		return
	}
	fmt.Fprintf(w, "%s%s%s\n", red, msg, reset)
}
