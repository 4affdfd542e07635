package dsa

import (
	"reflect"
	"testing"
)

func TestTrieInsertSearch(t *testing.T) {
	tr := NewTrie[string]()
	tr.Insert("/review", "Review the selection")
	tr.Insert("/explain", "Explain the code")
	tr.Insert("/review", "Review again")

	if tr.Size() != 2 {
		t.Fatalf("expected size 2, got %d", tr.Size())
	}
	got, ok := tr.Search("/review")
	if !ok || got != "Review again" {
		t.Errorf("expected updated value, got %q (found=%v)", got, ok)
	}
	if _, ok := tr.Search("/rev"); ok {
		t.Error("partial key must not match")
	}
}

func TestTrieStartsWith(t *testing.T) {
	tr := NewTrie[int]()
	for i, k := range []string{"#glob", "#file", "##buffer", "@files", "#fetch"} {
		tr.Insert(k, i)
	}

	got := tr.StartsWith("#f")
	want := []string{"#fetch", "#file"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StartsWith(#f) = %v, want %v", got, want)
	}
	if got := tr.StartsWith("$"); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestTrieWalkPrefixStops(t *testing.T) {
	tr := NewTrie[int]()
	tr.Insert("$a", 1)
	tr.Insert("$b", 2)
	tr.Insert("$c", 3)

	var seen []string
	tr.WalkPrefix("$", func(k string, v int) bool {
		seen = append(seen, k)
		return len(seen) == 2
	})
	if !reflect.DeepEqual(seen, []string{"$a", "$b"}) {
		t.Errorf("unexpected walk: %v", seen)
	}
}
