package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d in %q", len(id), id)
	}
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 50; i++ {
		next := gen()
		if next <= prev {
			t.Fatalf("UUIDv7: %q not after %q", next, prev)
		}
		prev = next
	}
}

func TestRunID_Prefix(t *testing.T) {
	id := RunID()
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("RunID: got %q, want run_ prefix", id)
	}
	if len(id) != len("run_")+36 {
		t.Fatalf("RunID: unexpected length %d", len(id))
	}
}
