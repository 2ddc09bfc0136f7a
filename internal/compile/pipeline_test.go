package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/internal/cfgtest"
)

func Test_Pipeline_HelloWorld(t *testing.T) {
	result, err := Pipeline(&PipelineOptions{SourceCode: `print("hello\n")`})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Assembly, "global main")
	assert.Contains(t, result.Assembly, "extern print")
	assert.Contains(t, result.Assembly, "call print")
}

func Test_Pipeline_IntegerArithmetic(t *testing.T) {
	result, err := Pipeline(&PipelineOptions{SourceCode: `let var x := 1 in printi(x + 2) end`})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Assembly, "call printi")
}

func Test_Pipeline_RecursiveFunction(t *testing.T) {
	src := `let function fact(n:int):int = if n=0 then 1 else n*fact(n-1) in printi(fact(5)) end`
	result, err := Pipeline(&PipelineOptions{SourceCode: src})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Assembly, "call fact")
}

func Test_Pipeline_ArrayLiteral(t *testing.T) {
	src := `let var a := initArray[10] of 7 in printi(a[3]) end`
	result, err := Pipeline(&PipelineOptions{SourceCode: src})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Assembly, "call initArray")
}

func Test_Pipeline_EscapingNestedFunction(t *testing.T) {
	src := `let var x := 10 function f() = printi(x) in f() end`
	result, err := Pipeline(&PipelineOptions{SourceCode: src})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func Test_Pipeline_SimplestAllocatorMatchesColoring(t *testing.T) {
	src := `let var x := 1 in printi(x + 2) end`
	color, err := Pipeline(&PipelineOptions{SourceCode: src, Allocator: ColorAlloc})
	require.NoError(t, err)
	simple, err := Pipeline(&PipelineOptions{SourceCode: src, Allocator: SimpleAlloc})
	require.NoError(t, err)
	assert.True(t, color.Success)
	assert.True(t, simple.Success)
	assert.Contains(t, simple.Assembly, "call printi")
}

func Test_Pipeline_SyntaxErrorShortCircuits(t *testing.T) {
	result, err := Pipeline(&PipelineOptions{SourceCode: `let var x := in end`})
	assert.Error(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Diagnostics)
}

func Test_Pipeline_TypeErrorShortCircuits(t *testing.T) {
	result, err := Pipeline(&PipelineOptions{SourceCode: `1 + "two"`})
	assert.Error(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Diagnostics)
}

func Test_Pipeline_BreakOutsideLoopIsDiagnosed(t *testing.T) {
	result, err := Pipeline(&PipelineOptions{SourceCode: `break`})
	assert.Error(t, err)
	assert.False(t, result.Success)
}

func Test_Pipeline_ManySimultaneousTempsForcesSpill(t *testing.T) {
	// 30 simultaneously-live integer locals, all summed into one printi
	// call: the coloring allocator has only 14 general-purpose registers
	// to work with, so at least one of these must actually spill.
	var src string
	for i := 0; i < 30; i++ {
		src += "var v" + itoa(i) + " := " + itoa(i) + " "
	}
	src = "let " + src + "in printi("
	for i := 0; i < 30; i++ {
		if i > 0 {
			src += " + "
		}
		src += "v" + itoa(i)
	}
	src += ") end"

	result, err := Pipeline(&PipelineOptions{SourceCode: src})
	require.NoError(t, err)
	assert.True(t, result.Success)
	// A spill gives main a frame slot, so its prologue reserves stack space.
	assert.NotContains(t, result.Assembly, "sub rsp, 0\n")
}

// Test_Pipeline_AssemblyIsDeterministicAcrossRuns guards against
// map-iteration-order or gensym-seeding nondeterminism leaking into the
// emitted assembly: compiling the same source twice must produce
// byte-identical output. On mismatch the unified diff pinpoints exactly
// which instructions moved instead of dumping both full listings.
func Test_Pipeline_AssemblyIsDeterministicAcrossRuns(t *testing.T) {
	src := `let
		function fact(n: int): int = if n = 0 then 1 else n * fact(n - 1)
		var a := fact(5)
	in printi(a)
	end`

	first, err := Pipeline(&PipelineOptions{SourceCode: src})
	require.NoError(t, err)
	second, err := Pipeline(&PipelineOptions{SourceCode: src})
	require.NoError(t, err)

	diff, err := cfgtest.Diff("assembly", first.Assembly, second.Assembly)
	require.NoError(t, err)
	assert.Empty(t, diff, "Pipeline produced different assembly across identical runs:\n%s", diff)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
