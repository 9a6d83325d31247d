package database

import (
	"bytes"

	"lol.mleku.dev/chk"
	"quadrelay.dev/pkg/database/indexes"
	"quadrelay.dev/pkg/database/indexes/types"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/ints"
)

// GetIndexesForEvent builds every secondary index key for ev at serial,
// the set written alongside the primary event record and removed together
// with it on delete.
func GetIndexesForEvent(ev *event.E, serial uint64) (idxs [][]byte, err error) {
	var ser types.Uint40
	if err = ser.Set(serial); chk.E(err) {
		return
	}
	var id, pub types.Ident
	if err = id.Set(ev.ID); chk.E(err) {
		return
	}
	if err = pub.Set(ev.Pubkey); chk.E(err) {
		return
	}
	var ca types.Uint64
	ca.Set(uint64(ev.CreatedAt))
	var kd types.Uint16
	kd.Set(ev.Kind)

	appendKey := func(m func(w *bytes.Buffer) error) {
		buf := new(bytes.Buffer)
		if e := m(buf); chk.E(e) {
			err = e
			return
		}
		idxs = append(idxs, buf.Bytes())
	}

	appendKey(func(w *bytes.Buffer) error {
		return indexes.ByIdEnc(&id, &ser).MarshalWrite(w)
	})
	appendKey(func(w *bytes.Buffer) error {
		return indexes.ByPubkeyKindEnc(&pub, &kd, &ser).MarshalWrite(w)
	})
	appendKey(func(w *bytes.Buffer) error {
		return indexes.ByPubkeyEnc(&pub, &ser).MarshalWrite(w)
	})
	appendKey(func(w *bytes.Buffer) error {
		return indexes.ByKindEnc(&kd, &ser).MarshalWrite(w)
	})
	appendKey(func(w *bytes.Buffer) error {
		return indexes.ByCreatedAtEnc(&ca, &ser).MarshalWrite(w)
	})
	appendKey(func(w *bytes.Buffer) error {
		return indexes.FullIdPubkeyEnc(&ser, &id, &pub, &ca).MarshalWrite(w)
	})
	if err != nil {
		return
	}

	if expTag := ev.Tags.GetFirst("expiration"); expTag != nil {
		n := ints.New(0)
		if _, e := n.Unmarshal([]byte(expTag.Value())); e == nil {
			var exp types.Uint64
			exp.Set(n.N)
			appendKey(func(w *bytes.Buffer) error {
				return indexes.ExpirationEnc(&exp, &ser).MarshalWrite(w)
			})
			if err != nil {
				return
			}
		}
	}

	// single-letter tags are indexed individually, matching the NIP-01
	// convention that only these are queryable via "#<letter>" filters.
	for _, t := range ev.Tags {
		if len(t.Key()) != 1 {
			continue
		}
		val := t.Value()
		if val == "" {
			continue
		}
		letter := indexes.TagLetter(t.Key()[0])
		blob := new(types.Blob)
		blob.Set([]byte(val))
		appendKey(func(w *bytes.Buffer) error {
			return indexes.ByTagEnc(letter, blob, &ser).MarshalWrite(w)
		})
		if err != nil {
			return
		}
	}
	return
}
