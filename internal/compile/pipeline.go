// Package compile wires the front end (lexer/parser/escape/semant) to
// the middle and back end (canon/cfg/frame) into the single
// compile-one-file-to-assembly-text entry point the CLI driver calls.
// Grounded on the teacher's compile/pipeline.go: the same
// options-struct-plus-early-return-per-stage shape, the same family of
// dump* pretty-printers, with the teacher's bare fmt.Println stage
// narration replaced by leveled logrus entries per SPEC_FULL.md's
// ambient-stack section.
package compile

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"tigerc/internal/asm"
	"tigerc/internal/canon"
	"tigerc/internal/cfg"
	"tigerc/internal/diagnostics"
	"tigerc/internal/escape"
	"tigerc/internal/frame"
	"tigerc/internal/parser"
	"tigerc/internal/semant"
	"tigerc/internal/symbol"
	"tigerc/internal/temp"
	"tigerc/internal/types"
)

// Allocator selects which register-allocation strategy Pipeline uses.
type Allocator int

const (
	// ColorAlloc is the default Chaitin/Briggs/George iterated-coalescing
	// allocator (internal/cfg.Allocate).
	ColorAlloc Allocator = iota
	// SimpleAlloc is spec.md §4.6's spill-everything baseline
	// (internal/cfg.SimplestAllocate), selected by --simplealloc.
	SimpleAlloc
)

// PipelineOptions configures one run of Pipeline. Mirrors the teacher's
// PipelineOptions: a source input, a family of StopAfter* short-circuits
// for driving the pipeline from tests or debug tooling, and a family of
// Dump* flags for structural dumps of each stage's output.
type PipelineOptions struct {
	SourceFile string
	SourceCode string

	Allocator Allocator

	StopAfterLex      bool
	StopAfterParse    bool
	StopAfterSemantic bool
	StopAfterCanon    bool
	StopAfterSelect   bool

	DumpTokens       bool
	DumpAST          bool
	DumpIR           bool
	DumpCFG          bool
	DumpLiveness     bool
	DumpInterference bool
	DumpAsm          bool
	Verbose          bool

	Log io.Writer
}

// DefaultPipelineOptions returns the coloring allocator with every
// Stop/Dump flag off, matching tigerc's no-flags default behavior.
func DefaultPipelineOptions() *PipelineOptions {
	return &PipelineOptions{Allocator: ColorAlloc}
}

// CompilationResult is everything one Pipeline run produces.
type CompilationResult struct {
	SourceFile string

	Diagnostics []*diagnostics.Diagnostic

	// Assembly is the complete NASM-syntax source for the compiled
	// program: a .data section of string fragments followed by a .text
	// section of every function, once Pipeline returns successfully.
	Assembly string

	Success bool
}

func newLogger(opts *PipelineOptions) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if opts.Log != nil {
		log.SetOutput(opts.Log)
	}
	if !opts.Verbose {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

// Pipeline runs the full lex -> parse -> escape -> semant -> per-fragment
// (canon -> select -> allocate -> emit) pipeline over one source file (or
// in-memory source), returning the rendered assembly once every stage
// succeeds. A failing stage returns its diagnostics in result.Diagnostics
// and a non-nil error, short-circuiting the remaining stages (spec.md §7:
// within the core pipeline every later stage assumes a well-typed input,
// so no IR is produced for a failed compile).
func Pipeline(opts *PipelineOptions) (*CompilationResult, error) {
	log := newLogger(opts)
	result := &CompilationResult{SourceFile: opts.SourceFile}

	// ---------------------------------------------------------------
	// Stage 1: source acquisition + lexical analysis
	// ---------------------------------------------------------------
	log.WithField("stage", "lex").Info("reading source")

	src := opts.SourceCode
	sourceID := opts.SourceFile
	if src == "" {
		if opts.SourceFile == "" {
			return result, fmt.Errorf("no source provided")
		}
		data, err := os.ReadFile(opts.SourceFile)
		if err != nil {
			return result, fmt.Errorf("failed to read source file: %w", err)
		}
		src = string(data)
	}
	if sourceID == "" {
		sourceID = "<string>"
	}

	if opts.DumpTokens {
		dumpTokens(log.Out, sourceID, src)
	}
	if opts.StopAfterLex {
		result.Success = true
		return result, nil
	}

	// ---------------------------------------------------------------
	// Stage 2: parsing
	// ---------------------------------------------------------------
	log.WithField("stage", "parse").Info("parsing")

	sym := symbol.NewTable()
	exp, diags := parser.Parse(sourceID, src, sym)
	result.Diagnostics = diags
	if diagnostics.HasErrors(diags) {
		logDiags(log, diags, src)
		return result, fmt.Errorf("parsing failed with %d diagnostics", len(diags))
	}

	if opts.DumpAST {
		dumpAST(log.Out, exp)
	}
	if opts.StopAfterParse {
		result.Success = true
		return result, nil
	}

	// ---------------------------------------------------------------
	// Stage 3: escape analysis + semantic analysis / IR lowering
	// ---------------------------------------------------------------
	log.WithField("stage", "semant").Info("escape analysis + type checking")

	escape.Analyze(exp)

	arena := types.NewArena()
	gensym := temp.NewGensym(frame.FirstFreeTemp)
	semResult := semant.Translate(exp, arena, gensym, sym)
	result.Diagnostics = append(result.Diagnostics, semResult.Diags...)
	if diagnostics.HasErrors(semResult.Diags) {
		logDiags(log, semResult.Diags, src)
		return result, fmt.Errorf("semantic analysis failed with %d diagnostics", len(semResult.Diags))
	}

	if opts.DumpIR {
		dumpFragments(log.Out, semResult.Fragments)
	}
	if opts.StopAfterSemantic {
		result.Success = true
		return result, nil
	}

	// ---------------------------------------------------------------
	// Stages 4-8, per fragment: canonicalize, select, build CFG +
	// liveness + interference, allocate, emit.
	// ---------------------------------------------------------------
	var asmOut strings.Builder
	var dataOut strings.Builder

	for _, frag := range semResult.Fragments {
		switch f := frag.(type) {
		case frame.StringFragment:
			dataOut.WriteString(renderStringFragment(f))

		case frame.FunctionFragment:
			flog := log.WithField("function", f.Frame.Name().String())

			flog.WithField("stage", "canon").Info("canonicalizing")
			stmts, _ := canon.Canonicalize(f.Body, gensym)

			if opts.StopAfterCanon {
				continue
			}

			flog.WithField("stage", "select").Info("selecting instructions")
			instrs := cfg.Select(stmts, gensym)
			instrs = f.Frame.ProcEntryExit2(instrs)

			if opts.DumpCFG || opts.DumpLiveness || opts.DumpInterference {
				dumpAnalysis(log.Out, f.Frame.Name().String(), instrs, opts)
			}
			if opts.StopAfterSelect {
				continue
			}

			flog.WithField("stage", "regalloc").Info("allocating registers")
			var allocated []asm.Instruction
			switch opts.Allocator {
			case SimpleAlloc:
				allocated = cfg.SimplestAllocate(instrs, f.Frame, frame.ConvAMD64)
			default:
				allocated, _ = cfg.Allocate(instrs, f.Frame, frame.ConvAMD64, gensym)
			}

			sub := f.Frame.ProcEntryExit3(allocated)
			asmOut.WriteString(renderSubroutine(sub, frame.ConvAMD64))
			asmOut.WriteString("\n")
		}
	}

	program := renderProgram(dataOut.String(), asmOut.String())
	if opts.DumpAsm {
		fmt.Fprintln(log.Out, "========== ASM ==========")
		fmt.Fprintln(log.Out, program)
	}

	result.Assembly = program
	result.Success = true
	return result, nil
}

// runtimeExterns lists the C runtime ABI functions spec.md §6 declares;
// every compiled program may call any subset of them, so .text always
// declares all of them extern (an unused extern declaration is harmless
// to the assembler/linker, unlike an undeclared call site).
var runtimeExterns = []string{
	"print", "printi", "flush", "getchar", "ord", "chr", "size",
	"substring", "concat", "not", "exit", "stringEqual", "malloc", "initArray",
}

func renderProgram(data, text string) string {
	var b strings.Builder
	b.WriteString("section .data\n")
	b.WriteString(data)
	b.WriteString("\nsection .text\n")
	b.WriteString("global main\n")
	for _, sym := range runtimeExterns {
		fmt.Fprintf(&b, "extern %s\n", sym)
	}
	b.WriteString("\n")
	b.WriteString(text)
	return b.String()
}

// renderSubroutine assembles one function's prologue, register-resolved
// body, and epilogue into NASM text, substituting every 'd<i>/'s<i>
// placeholder via conv.TempName.
func renderSubroutine(sub asm.Subroutine, conv frame.CallingConvention) string {
	var b strings.Builder
	b.WriteString(sub.Prolog)
	for _, in := range sub.Body {
		text := in.Format(conv.TempName)
		if text == "" {
			continue
		}
		if in.IsLabel() {
			b.WriteString(text)
			b.WriteString("\n")
		} else {
			b.WriteString("\t")
			b.WriteString(text)
			b.WriteString("\n")
		}
	}
	b.WriteString(sub.Epilog)
	return b.String()
}

// renderStringFragment emits one .data entry: spec.md §6 requires control
// bytes escaped numerically rather than as NASM string literals, so every
// byte of the string (plus the trailing NUL) is rendered as a `db` list.
func renderStringFragment(f frame.StringFragment) string {
	bytes := []byte(f.Value)
	parts := make([]string, 0, len(bytes)+1)
	for _, c := range bytes {
		if c >= 0x20 && c < 0x7f && c != '\'' && c != '\\' {
			parts = append(parts, fmt.Sprintf("'%c'", c))
		} else {
			parts = append(parts, strconv.Itoa(int(c)))
		}
	}
	parts = append(parts, "0")
	return fmt.Sprintf("%s: db %s\n", f.Label, strings.Join(parts, ", "))
}

func logDiags(log *logrus.Logger, diags []*diagnostics.Diagnostic, src string) {
	for _, d := range diags {
		if d.Severity == diagnostics.SeverityError {
			log.Error(diagnostics.Render(d, src))
		}
	}
}
