// Command tigerc compiles a single Tiger source file to a native x86-64
// Linux executable: lex/parse/escape/semant/canon/select/allocate inside
// internal/compile.Pipeline, then NASM assembles the result and the
// system linker links it against runtime/runtime.a. The flag set and
// driver order are grounded on original_source/tiger/src/main.rs's
// drive(): parse the allocator choice, read the named file, write a
// sibling .s file, invoke nasm, then invoke the linker.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tigerc/internal/compile"
	"tigerc/internal/diagnostics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		simpleAlloc      bool
		colorAlloc       bool
		verbose          bool
		keepAsm          bool
		assembleOnly     bool
		output           string
		runtimeArchive   string
		dumpTokens       bool
		dumpAST          bool
		dumpIR           bool
		dumpCFG          bool
		dumpLiveness     bool
		dumpInterference bool
		dumpAsm          bool
	)

	cmd := &cobra.Command{
		Use:          "tigerc [flags] <file.tig>",
		Short:        "Compile a Tiger program to a native x86-64 executable",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if simpleAlloc && colorAlloc {
				return fmt.Errorf("--simplealloc and --coloralloc are mutually exclusive")
			}
			alloc := compile.ColorAlloc
			if simpleAlloc {
				alloc = compile.SimpleAlloc
			}

			sourcePath := args[0]
			source, err := os.ReadFile(sourcePath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", sourcePath, err)
			}

			opts := &compile.PipelineOptions{
				SourceFile:       sourcePath,
				SourceCode:       string(source),
				Allocator:        alloc,
				DumpTokens:       dumpTokens,
				DumpAST:          dumpAST,
				DumpIR:           dumpIR,
				DumpCFG:          dumpCFG,
				DumpLiveness:     dumpLiveness,
				DumpInterference: dumpInterference,
				DumpAsm:          dumpAsm,
				Verbose:          verbose,
				Log:              cmd.ErrOrStderr(),
			}

			result, pipelineErr := compile.Pipeline(opts)
			if pipelineErr != nil {
				for _, d := range result.Diagnostics {
					if d.Severity == diagnostics.SeverityError {
						fmt.Fprintln(cmd.ErrOrStderr(), diagnostics.Render(d, string(source)))
					}
				}
				return pipelineErr
			}

			ext := filepath.Ext(sourcePath)
			base := strings.TrimSuffix(sourcePath, ext)
			asmPath := base + ".s"
			objPath := base + ".o"
			exePath := base
			if output != "" {
				exePath = output
			}

			if err := os.WriteFile(asmPath, []byte(result.Assembly), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", asmPath, err)
			}
			if !keepAsm {
				defer os.Remove(asmPath)
			}

			if err := runTool(cmd, "nasm", "-f", "elf64", "-o", objPath, asmPath); err != nil {
				return err
			}
			if assembleOnly {
				return nil
			}
			defer os.Remove(objPath)

			if err := runTool(cmd, "cc", "-o", exePath, objPath, runtimeArchive); err != nil {
				return err
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&simpleAlloc, "simplealloc", false, "use the spill-everything baseline register allocator")
	cmd.Flags().BoolVar(&colorAlloc, "coloralloc", false, "use the iterated-coalescing graph-coloring register allocator (default)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each pipeline stage as it runs")
	cmd.Flags().BoolVar(&keepAsm, "keep-asm", false, "keep the generated .s file instead of removing it when tigerc exits")
	cmd.Flags().BoolVarP(&assembleOnly, "assemble-only", "c", false, "stop after producing the .o file; do not link")
	cmd.Flags().StringVarP(&output, "output", "o", "", "executable path (default: the source file's name without its extension)")
	cmd.Flags().StringVar(&runtimeArchive, "runtime", defaultRuntimeArchive(), "path to the compiled runtime archive to link against")
	cmd.Flags().BoolVar(&dumpTokens, "dump-tokens", false, "dump the lexed token stream")
	cmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "print the parsed AST's root node type and position")
	cmd.Flags().BoolVar(&dumpIR, "dump-ir", false, "list the lowered IR fragments (function names and string literals; IR trees are not printed)")
	cmd.Flags().BoolVar(&dumpCFG, "dump-cfg", false, "dump each function's control-flow graph")
	cmd.Flags().BoolVar(&dumpLiveness, "dump-liveness", false, "run liveness analysis for each function (the live-in/live-out sets are not printed)")
	cmd.Flags().BoolVar(&dumpInterference, "dump-interference", false, "print each function's interference-graph node count (edges are not printed)")
	cmd.Flags().BoolVar(&dumpAsm, "dump-asm", false, "print the final generated assembly")

	return cmd
}

func runTool(cmd *cobra.Command, name string, args ...string) error {
	c := exec.Command(name, args...)
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

func defaultRuntimeArchive() string {
	if p := os.Getenv("TIGERC_RUNTIME"); p != "" {
		return p
	}
	return "runtime/runtime.a"
}
