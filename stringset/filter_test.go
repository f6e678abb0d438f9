package stringset

import (
	"strings"
	"testing"
)

func TestStringFilterDuplicateIsCaseSensitive(t *testing.T) {
	filter := NewStringFilter()
	first := "[loaded] - https://cdn.example.com/Widget.js?v=2"
	if filter.Duplicate(first) {
		t.Fatalf("first insert should not be duplicate")
	}
	if !filter.Duplicate(first) {
		t.Fatalf("identical string should be duplicate")
	}
	if filter.Duplicate(strings.ToLower(first)) {
		t.Fatalf("strings differing in case are distinct")
	}
	if filter.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", filter.Len())
	}
}
