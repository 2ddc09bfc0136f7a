package semant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/internal/diagnostics"
	"tigerc/internal/escape"
	"tigerc/internal/frame"
	"tigerc/internal/parser"
	"tigerc/internal/symbol"
	"tigerc/internal/temp"
	"tigerc/internal/types"
)

// analyzeCode parses code, runs escape analysis, then translates it,
// requiring the parse itself to have succeeded so any diagnostics
// returned are genuinely semant's.
func analyzeCode(t *testing.T, testName, code string) Result {
	t.Helper()
	sym := symbol.NewTable()
	exp, parseDiags := parser.Parse(testName, code, sym)
	require.False(t, diagnostics.HasErrors(parseDiags), "parse errors: %v", parseDiags)

	escape.Analyze(exp)
	arena := types.NewArena()
	gensym := temp.NewGensym(frame.FirstFreeTemp)
	return Translate(exp, arena, gensym, sym)
}

func requireNoErrors(t *testing.T, diags []*diagnostics.Diagnostic) {
	t.Helper()
	if diagnostics.HasErrors(diags) {
		for _, d := range diags {
			t.Logf("diagnostic: %s", d.Error())
		}
		t.Fatalf("expected no semantic errors")
	}
}

func Test_Translate_IntegerArithmeticIsWellTyped(t *testing.T) {
	result := analyzeCode(t, "int_arith", `1 + 2 * 3`)
	requireNoErrors(t, result.Diags)
}

func Test_Translate_MismatchedOperandTypesIsDiagnosed(t *testing.T) {
	result := analyzeCode(t, "mismatch", `1 + "two"`)
	assert.True(t, diagnostics.HasErrors(result.Diags))
}

func Test_Translate_UndefinedVariableIsDiagnosed(t *testing.T) {
	result := analyzeCode(t, "undef_var", `x + 1`)
	assert.True(t, diagnostics.HasErrors(result.Diags))
}

func Test_Translate_UndefinedFunctionIsDiagnosed(t *testing.T) {
	result := analyzeCode(t, "undef_fn", `nosuchfunction(1)`)
	assert.True(t, diagnostics.HasErrors(result.Diags))
}

func Test_Translate_BreakOutsideLoopIsDiagnosed(t *testing.T) {
	result := analyzeCode(t, "stray_break", `break`)
	assert.True(t, diagnostics.HasErrors(result.Diags))
}

func Test_Translate_BreakInsideWhileIsWellTyped(t *testing.T) {
	result := analyzeCode(t, "break_in_while", `while 1 do break`)
	requireNoErrors(t, result.Diags)
}

func Test_Translate_RecursiveFunctionsSeeEachOther(t *testing.T) {
	src := `let
		function isEven(n: int): int = if n = 0 then 1 else isOdd(n - 1)
		function isOdd(n: int): int = if n = 0 then 0 else isEven(n - 1)
	in isEven(10)
	end`
	result := analyzeCode(t, "mutual_recursion", src)
	requireNoErrors(t, result.Diags)
}

func Test_Translate_RecordFieldTypeMismatchIsDiagnosed(t *testing.T) {
	src := `let
		type point = {x: int, y: int}
		var p := point{x=1, y="two"}
	in p
	end`
	result := analyzeCode(t, "record_field_mismatch", src)
	assert.True(t, diagnostics.HasErrors(result.Diags))
}

func Test_Translate_ArraySubscriptMustBeInt(t *testing.T) {
	src := `let
		type intArray = array of int
		var a := intArray[10] of 0
	in a["x"]
	end`
	result := analyzeCode(t, "array_subscript_type", src)
	assert.True(t, diagnostics.HasErrors(result.Diags))
}

func Test_Translate_LetBodyProducesAFunctionFragmentForMain(t *testing.T) {
	result := analyzeCode(t, "fragments", `let var x := 1 in x end`)
	requireNoErrors(t, result.Diags)

	sawFunction := false
	for _, frag := range result.Fragments {
		if _, ok := frag.(frame.FunctionFragment); ok {
			sawFunction = true
		}
	}
	assert.True(t, sawFunction)
}

func Test_Translate_StringLiteralProducesAStringFragment(t *testing.T) {
	result := analyzeCode(t, "string_fragment", `print("hi")`)
	requireNoErrors(t, result.Diags)

	sawString := false
	for _, frag := range result.Fragments {
		if _, ok := frag.(frame.StringFragment); ok {
			sawString = true
		}
	}
	assert.True(t, sawString)
}
