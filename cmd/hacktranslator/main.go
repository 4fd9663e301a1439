package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/afero"
	"github.com/teris-io/cli"

	"go.hmny.dev/hacktranslator/pkg/asm"
	"go.hmny.dev/hacktranslator/pkg/hack"
	"go.hmny.dev/hacktranslator/pkg/hex"
	"go.hmny.dev/hacktranslator/pkg/vm"
)

var Description = strings.ReplaceAll(`
The Hack Translator compiles either Hack assembly (.asm) or the nand2tetris
Vm intermediate language (.vm) down to a Hack .hack binary, ready to run on
the Hack platform. The dialect is selected from the input file's extension.
`, "\n", " ")

var HackTranslator = cli.New(Description).
	WithArg(cli.NewArg("input", "The source file to compile (.asm or .vm)")).
	WithAction(Handler)

// Handler implements the driver described by the CLI contract: one
// positional argument, dialect dispatch by extension, exit code 1 on any
// user-visible failure and 0 on success.
func Handler(args []string, options map[string]string) int {
	logger := newLogger()
	path := args[0]

	dialect := strings.TrimPrefix(filepath.Ext(path), ".")
	logger.Info(fmt.Sprintf("Compiling %s of type %s", path, dialect))

	source, err := os.ReadFile(path)
	if err != nil {
		logger.Error("unable to open input file", "path", path, "error", err)
		return 1
	}

	var words []string
	switch dialect {
	case "asm":
		words, err = compileAssembly(source)
	case "vm":
		words, err = compileVm(path, source)
	default:
		err = fmt.Errorf("unrecognized file extension %q", dialect)
	}
	if err != nil {
		logger.Error("compilation failed", "path", path, "error", err)
		return 1
	}

	writer := hex.NewWriter(afero.NewOsFs())
	outPath, err := writer.Write(path, words)
	if err != nil {
		logger.Error("unable to write output file", "path", path, "error", err)
		return 1
	}

	logger.Info(outPath)
	return 0
}

// compileAssembly runs the Assembler pipeline: parse, resolve labels
// (pass 1), encode (pass 2).
func compileAssembly(source []byte) ([]string, error) {
	parser := asm.NewParser(bytes.NewReader(source))
	program, err := parser.Parse()
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	lowerer := asm.NewLowerer(program)
	hackProgram, table, err := lowerer.Lower()
	if err != nil {
		return nil, fmt.Errorf("label resolution: %w", err)
	}

	codegen := hack.NewCodeGenerator(hackProgram, table)
	words, err := codegen.Generate()
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}
	return words, nil
}

// compileVm runs the Vm pipeline: parse, lower to an asm.Program (the
// VM→ASM intermediate, never persisted), then feed that straight through the
// Assembler's own label resolution and encoding passes.
func compileVm(path string, source []byte) ([]string, error) {
	// filename keeps its extension: spec scenario 6 binds the static segment
	// symbol to the exact source file name, e.g. "Foo.vm" -> staticvar.Foo.vm.3.
	filename := filepath.Base(path)

	parser := vm.NewParser(filename)
	unit, diagnostics := parser.Parse(source)
	if len(diagnostics) > 0 {
		var report strings.Builder
		for _, d := range diagnostics {
			report.WriteString(d.Render())
		}
		return nil, fmt.Errorf("parsing failed with %d diagnostic(s):\n%s", len(diagnostics), report.String())
	}

	vmLowerer := vm.NewLowerer(unit)
	asmProgram, err := vmLowerer.Lower()
	if err != nil {
		return nil, fmt.Errorf("lowering: %w", err)
	}

	asmLowerer := asm.NewLowerer(asmProgram)
	hackProgram, table, err := asmLowerer.Lower()
	if err != nil {
		return nil, fmt.Errorf("label resolution: %w", err)
	}

	codegen := hack.NewCodeGenerator(hackProgram, table)
	words, err := codegen.Generate()
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}
	return words, nil
}

// newLogger builds the driver's logger: plain text to stdout always, plus a
// second sink tee'd to HACK_DEBUG_LOG when set, mirroring the parser
// packages' own PARSEC_DEBUG/PRINT_AST feature-flag idiom.
func newLogger() *slog.Logger {
	handlers := []slog.Handler{slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})}

	if logPath := os.Getenv("HACK_DEBUG_LOG"); logPath != "" {
		if file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			handlers = append(handlers, slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

func main() { os.Exit(HackTranslator.Run(os.Args, os.Stdout)) }
