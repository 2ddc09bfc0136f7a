package compile

import (
	"fmt"
	"io"

	"tigerc/internal/ast"
	"tigerc/internal/asm"
	"tigerc/internal/cfg"
	"tigerc/internal/frame"
	"tigerc/internal/lexer"
)

// dumpTokens re-lexes src (the parser consumes its own private lexer) so
// -dump-tokens can show the raw token stream without disturbing parsing,
// matching the teacher's dumpTokens shape: one line per token.
func dumpTokens(w io.Writer, file, src string) {
	fmt.Fprintln(w, "========== TOKENS ==========")
	for tok := range lexer.New(file, src).Tokens() {
		fmt.Fprintf(w, "  %s %q\n", tok.Kind, tok.Text)
		if tok.Kind == lexer.EOF {
			break
		}
	}
	fmt.Fprintln(w)
}

func dumpAST(w io.Writer, exp ast.Exp) {
	fmt.Fprintln(w, "========== AST ==========")
	fmt.Fprintf(w, "%T at %s\n", exp, exp.Pos())
	fmt.Fprintln(w)
}

func dumpFragments(w io.Writer, fragments []frame.Fragment) {
	fmt.Fprintln(w, "========== IR ===========")
	for _, frag := range fragments {
		switch f := frag.(type) {
		case frame.FunctionFragment:
			fmt.Fprintf(w, "  function %s\n", f.Frame.Name())
		case frame.StringFragment:
			fmt.Fprintf(w, "  string %s = %q\n", f.Label, f.Value)
		}
	}
	fmt.Fprintln(w)
}

func dumpAnalysis(w io.Writer, fnName string, instrs []asm.Instruction, opts *PipelineOptions) {
	flow := cfg.BuildFlowGraph(instrs)
	if opts.DumpCFG {
		fmt.Fprintf(w, "========== CFG: %s ==========\n", fnName)
		for i := 0; i < flow.Len(); i++ {
			node := flow.Value(cfg.NodeID(i))
			fmt.Fprintf(w, "  [%d] defines=%v uses=%v move=%v -> %v\n",
				i, node.Defines, node.Uses, node.IsMove, flow.Successors(cfg.NodeID(i)))
		}
		fmt.Fprintln(w)
	}

	if !opts.DumpLiveness && !opts.DumpInterference {
		return
	}
	ig := cfg.BuildInterferenceGraph(flow)
	if opts.DumpInterference {
		fmt.Fprintf(w, "========== INTERFERENCE: %s ==========\n", fnName)
		fmt.Fprintf(w, "  nodes: %d\n", ig.Len())
		fmt.Fprintln(w)
	}
}
