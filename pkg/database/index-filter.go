package database

import (
	"bytes"
	"math"
	"strings"

	"lol.mleku.dev/chk"
	"quadrelay.dev/pkg/database/indexes"
	"quadrelay.dev/pkg/database/indexes/types"
	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/hex"
)

// Range bounds a reverse scan over one index family: Start and End are both
// the index key with its trailing serial omitted, narrowed as far as the
// filter allows.
type Range struct {
	Start []byte
	End   []byte
}

func prefixBytes(m func(w *bytes.Buffer) error) (b []byte, err error) {
	buf := new(bytes.Buffer)
	if err = m(buf); chk.E(err) {
		return
	}
	b = buf.Bytes()
	return
}

// GetIndexesFromFilter picks the most selective index family available in
// f and returns the scan ranges needed to cover it. A filter combining
// several constraints (e.g. Authors+Kinds+Tags) is narrowed on the single
// best one here; GetSerialsFromFilter re-verifies every candidate serial
// against the full filter, so this never returns false positives, only
// possibly wider-than-necessary candidate sets.
func GetIndexesFromFilter(f *filter.F) (idxs []Range, err error) {
	switch {
	case len(f.IDs) > 0:
		for _, h := range f.IDs {
			var b []byte
			if b, err = hex.Dec(h); chk.E(err) {
				err = nil
				continue
			}
			var id types.Ident
			if err = id.Set(b); chk.E(err) {
				err = nil
				continue
			}
			var p []byte
			if p, err = prefixBytes(func(w *bytes.Buffer) error {
				return indexes.ByIdEnc(&id, nil).MarshalWrite(w)
			}); chk.E(err) {
				return
			}
			idxs = append(idxs, Range{Start: p, End: p})
		}
		return

	case len(f.Authors) > 0 && len(f.Kinds) > 0:
		for _, h := range f.Authors {
			var b []byte
			if b, err = hex.Dec(h); chk.E(err) {
				err = nil
				continue
			}
			var pub types.Ident
			if err = pub.Set(b); chk.E(err) {
				err = nil
				continue
			}
			for _, k := range f.Kinds {
				var kd types.Uint16
				kd.Set(uint16(k))
				var p []byte
				if p, err = prefixBytes(func(w *bytes.Buffer) error {
					return indexes.ByPubkeyKindEnc(&pub, &kd, nil).MarshalWrite(w)
				}); chk.E(err) {
					return
				}
				idxs = append(idxs, Range{Start: p, End: p})
			}
		}
		return

	case len(f.Authors) > 0:
		for _, h := range f.Authors {
			var b []byte
			if b, err = hex.Dec(h); chk.E(err) {
				err = nil
				continue
			}
			var pub types.Ident
			if err = pub.Set(b); chk.E(err) {
				err = nil
				continue
			}
			var p []byte
			if p, err = prefixBytes(func(w *bytes.Buffer) error {
				return indexes.ByPubkeyEnc(&pub, nil).MarshalWrite(w)
			}); chk.E(err) {
				return
			}
			idxs = append(idxs, Range{Start: p, End: p})
		}
		return

	case len(f.Tags) > 0:
		for _, q := range f.Tags {
			key := strings.TrimPrefix(q.Key(), "#")
			if len(key) != 1 || len(q) < 2 {
				continue
			}
			letter := indexes.TagLetter(key[0])
			for _, v := range q[1:] {
				blob := new(types.Blob)
				blob.Set([]byte(v))
				var p []byte
				if p, err = prefixBytes(func(w *bytes.Buffer) error {
					return indexes.ByTagEnc(letter, blob, nil).MarshalWrite(w)
				}); chk.E(err) {
					return
				}
				idxs = append(idxs, Range{Start: p, End: p})
			}
		}
		return

	case len(f.Kinds) > 0:
		for _, k := range f.Kinds {
			var kd types.Uint16
			kd.Set(uint16(k))
			var p []byte
			if p, err = prefixBytes(func(w *bytes.Buffer) error {
				return indexes.ByKindEnc(&kd, nil).MarshalWrite(w)
			}); chk.E(err) {
				return
			}
			idxs = append(idxs, Range{Start: p, End: p})
		}
		return

	default:
		// no selective constraint: fall back to a created_at scan, bounded
		// by Since/Until when present, otherwise the full range.
		var since, until uint64
		if f.Since != nil {
			since = uint64(f.Since.I64())
		}
		if f.Until != nil {
			until = uint64(f.Until.I64())
		} else {
			until = math.MaxInt64
		}
		var caS, caU types.Uint64
		caS.Set(since)
		caU.Set(until)
		var start, end []byte
		if start, err = prefixBytes(func(w *bytes.Buffer) error {
			return indexes.ByCreatedAtEnc(&caS, nil).MarshalWrite(w)
		}); chk.E(err) {
			return
		}
		if end, err = prefixBytes(func(w *bytes.Buffer) error {
			return indexes.ByCreatedAtEnc(&caU, nil).MarshalWrite(w)
		}); chk.E(err) {
			return
		}
		idxs = append(idxs, Range{Start: start, End: end})
		return
	}
}
