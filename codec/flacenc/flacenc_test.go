package flacenc

import "testing"

// TestSeekTableTemplateCoversSpan covers spec.md §4.8's requirement
// that the installed template spans SeekTableSpan samples at
// SeekPointSpacing intervals.
func TestSeekTableTemplateCoversSpan(t *testing.T) {
	numPoints := SeekTableSpan / SeekPointSpacing
	if numPoints <= 0 {
		t.Fatalf("numPoints = %d, want > 0", numPoints)
	}
	if SeekTableSpan%SeekPointSpacing != 0 {
		t.Fatalf("SeekTableSpan %d is not a multiple of SeekPointSpacing %d", SeekTableSpan, SeekPointSpacing)
	}
}

// TestLegacyPlaceholderIsAllOnes covers spec.md §8 S6's literal
// sentinel value for untouched trailing seekpoints.
func TestLegacyPlaceholderIsAllOnes(t *testing.T) {
	if legacyPlaceholder != 0xFFFFFFFFFFFFFFFF {
		t.Fatalf("legacyPlaceholder = %#x, want 0xFFFFFFFFFFFFFFFF", legacyPlaceholder)
	}
}
