// Package cfgtest provides shared golden-snapshot test helpers used by
// internal/cfg's allocator/selector tests and internal/compile's
// end-to-end pipeline tests: a deterministic structural dump for values
// whose expected form is easier to eyeball than to assert field by
// field, and a unified diff for comparing two such dumps (or two
// renderings of generated assembly) on failure.
package cfgtest

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Sdump renders v as a deterministic multi-line string: map keys are
// sorted and pointer addresses are suppressed, so two structurally
// identical values (a register Allocation, an interference graph's node
// set) dump identically across runs regardless of map-iteration order.
func Sdump(v any) string {
	return dumper.Sdump(v)
}

// Diff renders a unified diff between want and got, labeled name, for a
// readable failure message instead of printing both strings in full.
// Returns the empty string when want == got.
func Diff(name, want, got string) (string, error) {
	if want == got {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: name + " (want)",
		ToFile:   name + " (got)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("computing diff for %s: %w", name, err)
	}
	return text, nil
}
