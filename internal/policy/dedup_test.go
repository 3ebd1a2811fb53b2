package policy

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUserPairKeySymmetry(t *testing.T) {
	pairs := [][2]int64{{1, 2}, {2, 1}, {7, 7}, {100, 3}, {3, 100}, {1 << 40, 5}}
	for _, p := range pairs {
		ab, okAB := UserPairKey(p[0], p[1])
		ba, okBA := UserPairKey(p[1], p[0])
		if !okAB || !okBA {
			t.Fatalf("UserPairKey(%d, %d) unexpectedly absent", p[0], p[1])
		}
		if ab != ba {
			t.Errorf("UserPairKey(%d, %d) = %q, reversed = %q", p[0], p[1], ab, ba)
		}
	}
}

func TestUserPairKeyNonPositive(t *testing.T) {
	tests := []struct {
		name   string
		u1, u2 int64
	}{
		{"zero first", 0, 5},
		{"zero second", 5, 0},
		{"negative first", -1, 5},
		{"both zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := UserPairKey(tt.u1, tt.u2); ok {
				t.Errorf("expected no key for (%d, %d)", tt.u1, tt.u2)
			}
		})
	}
}

func TestMatchKey(t *testing.T) {
	tests := []struct {
		name    string
		matchID int64
		u1, u2  int64
		want    string
		wantOK  bool
	}{
		{"match id wins", 42, 1, 2, "m:42", true},
		{"fallback to pair", 0, 2, 1, "p:1_2", true},
		{"negative id falls back", -1, 9, 4, "p:4_9", true},
		{"no usable key", 0, 0, 3, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchKey(tt.matchID, tt.u1, tt.u2)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("key mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDedupSet(t *testing.T) {
	d := NewDedupSet()
	if d.Has("m:1") {
		t.Fatal("empty set should not contain keys")
	}

	d.Mark("m:1")
	d.Mark("p:1_2")
	if !d.Has("m:1") || !d.Has("p:1_2") {
		t.Fatal("marked keys missing")
	}
	if got := d.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}

	d.Clear()
	if d.Has("m:1") || d.Len() != 0 {
		t.Fatal("Clear did not empty the set")
	}
}
