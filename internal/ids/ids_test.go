package ids

import "testing"

func TestNewIsUniqueAndSortable(t *testing.T) {
	const n = 1000
	seen := make(map[string]struct{}, n)
	prev := ""
	for i := 0; i < n; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected id length %d for %q", len(id), id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
		if id <= prev {
			t.Fatalf("ids not strictly increasing: %s after %s", id, prev)
		}
		prev = id
	}
}
