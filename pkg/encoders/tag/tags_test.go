package tag

import "testing"

func TestTagsSortAndLookup(t *testing.T) {
	s := NewS(
		New("p", "alice"),
		New("e", "event1"),
		New("e", "event2"),
	)
	s.Sort()
	if s[0].Key() != "e" {
		t.Fatalf("expected sort to bring 'e' tags first, got %q", s[0].Key())
	}
	if got := s.GetFirst("p"); got == nil || got.Value() != "alice" {
		t.Fatal("GetFirst(\"p\") did not find expected tag")
	}
	if got := s.GetAll("e"); len(got) != 2 {
		t.Fatalf("GetAll(\"e\") = %d tags, want 2", len(got))
	}
	if !s.ContainsAny("p", []string{"bob", "alice"}) {
		t.Fatal("ContainsAny should have matched alice")
	}
	if s.ContainsAny("p", []string{"bob"}) {
		t.Fatal("ContainsAny should not have matched bob")
	}
}
