package event

import (
	"crypto/rand"
	"encoding/json"
	"testing"

	"quadrelay.dev/pkg/encoders/tag"
)

func randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	ev := New()
	ev.ID = randBytes(32)
	ev.Pubkey = randBytes(32)
	ev.CreatedAt = 1700000000
	ev.Kind = 1
	ev.Tags = tag.S{
		tag.New("t", "hashtag"),
		tag.New("e", "abc123"),
	}
	ev.Content = "some text content\n\nwith line breaks and tabs\tand other stuff"
	ev.Sig = randBytes(64)

	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	ev2 := New()
	if err = json.Unmarshal(b, ev2); err != nil {
		t.Fatal(err)
	}
	b2, err := json.Marshal(ev2)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != string(b2) {
		t.Fatalf("round trip mismatch:\n%s\n%s", b, b2)
	}
}

func TestCanonicalExcludesHTMLEscaping(t *testing.T) {
	ev := New()
	ev.Pubkey = randBytes(32)
	ev.Content = "a <b> & c"
	canon, err := ev.ToCanonical()
	if err != nil {
		t.Fatal(err)
	}
	if string(canon) == "" {
		t.Fatal("empty canonical form")
	}
	for _, bad := range []string{"\\u003c", "\\u003e", "\\u0026"} {
		if containsStr(string(canon), bad) {
			t.Fatalf("canonical form HTML-escaped content: %s", canon)
		}
	}
}

func containsStr(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestGetIDBytesDeterministic(t *testing.T) {
	ev := New()
	ev.Pubkey = randBytes(32)
	ev.CreatedAt = 1700000000
	ev.Kind = 1
	ev.Content = "hello"
	id1, err := ev.GetIDBytes()
	if err != nil {
		t.Fatal(err)
	}
	id2, err := ev.GetIDBytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(id1) != string(id2) {
		t.Fatal("GetIDBytes is not deterministic")
	}
	if len(id1) != 32 {
		t.Fatalf("expected 32-byte id, got %d", len(id1))
	}
}
