package utils

import (
	"strings"
	"testing"
)

func TestRandomDisplayIDShape(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		id, err := randomDisplayID()
		if err != nil {
			t.Fatalf("randomDisplayID: %v", err)
		}
		if len(id) != displayIDLength {
			t.Fatalf("len(%q) = %d", id, len(id))
		}
		for _, r := range id {
			if !strings.ContainsRune(displayIDChars, r) {
				t.Fatalf("id %q contains %q outside the allowed alphabet", id, r)
			}
		}
		seen[id] = true
	}

	// 36^6 combinations: 50 draws colliding would point at a broken generator.
	if len(seen) < 45 {
		t.Errorf("only %d distinct ids in 50 draws", len(seen))
	}
}
