package filter

import (
	"crypto/rand"
	"math/big"

	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/encoders/tag"
	"quadrelay.dev/pkg/encoders/timestamp"
)

func randn(n int) int {
	if n <= 0 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.Enc(b)
}

// GenFilter builds a randomized filter, used by tests to exercise
// Marshal/Unmarshal and Matches against arbitrary combinations of fields.
func GenFilter() *F {
	f := New()
	for range randn(8) {
		f.IDs = append(f.IDs, randHex(32))
	}
	for range randn(8) {
		f.Kinds = append(f.Kinds, kind.K(randn(40000)))
	}
	for range randn(8) {
		f.Authors = append(f.Authors, randHex(32))
	}
	for b := byte('a'); b <= 'z'; b++ {
		l := randn(4)
		if l == 0 {
			continue
		}
		vals := make([]string, l)
		for i := range vals {
			vals[i] = randHex(8)
		}
		fields := append([]string{"#" + string(b)}, vals...)
		f.Tags = append(f.Tags, tag.New(fields...))
	}
	since := timestamp.Now() - timestamp.T(randn(10000))
	until := timestamp.Now()
	f.Since = &since
	f.Until = &until
	if randn(10) > 5 {
		n := randn(1000)
		f.Limit = &n
	}
	f.Search = "token search text"
	return f
}

// GenFilters builds a randomized FilterGroup of one to five filters.
func GenFilters() S {
	n := randn(5) + 1
	s := make(S, n)
	for i := range s {
		s[i] = GenFilter()
	}
	return s
}
