package event

import (
	"bufio"
	"encoding/binary"
	"io"

	"lol.mleku.dev/errorf"
	"quadrelay.dev/pkg/encoders/tag"
)

// minBinaryLen is the smallest possible encoded size: id(32) + pubkey(32) +
// created_at(8) + kind(2) + tag-count(1) + content-length(4) + sig(64), with
// zero tags and empty content.
const minBinaryLen = 32 + 32 + 8 + 2 + 1 + 4 + 64

// MarshalBinary writes the event's compact on-disk encoding: fixed-width
// id/pubkey/created_at/kind, a length-prefixed tag list, length-prefixed
// content, then the signature. This is the format stored as the value of
// the primary event record; it is never sent over the wire, where events
// use the NIP-01 JSON shape instead.
func (ev *E) MarshalBinary(w io.Writer) (err error) {
	bw := bufio.NewWriter(w)
	if _, err = bw.Write(pad32(ev.ID)); err != nil {
		return
	}
	if _, err = bw.Write(pad32(ev.Pubkey)); err != nil {
		return
	}
	var buf8 [8]byte
	binary.BigEndian.PutUint64(buf8[:], uint64(ev.CreatedAt))
	if _, err = bw.Write(buf8[:]); err != nil {
		return
	}
	var buf2 [2]byte
	binary.BigEndian.PutUint16(buf2[:], ev.Kind)
	if _, err = bw.Write(buf2[:]); err != nil {
		return
	}
	if len(ev.Tags) > 255 {
		return errorf.E("too many tags to encode: %d", len(ev.Tags))
	}
	if err = bw.WriteByte(byte(len(ev.Tags))); err != nil {
		return
	}
	for _, t := range ev.Tags {
		if err = writeStringList(bw, t); err != nil {
			return
		}
	}
	content := []byte(ev.Content)
	var buf4 [4]byte
	binary.BigEndian.PutUint32(buf4[:], uint32(len(content)))
	if _, err = bw.Write(buf4[:]); err != nil {
		return
	}
	if _, err = bw.Write(content); err != nil {
		return
	}
	sig := ev.Sig
	if len(sig) != 64 {
		sig = make([]byte, 64)
		copy(sig, ev.Sig)
	}
	if _, err = bw.Write(sig); err != nil {
		return
	}
	return bw.Flush()
}

// UnmarshalBinary reads an event back from MarshalBinary's encoding.
func (ev *E) UnmarshalBinary(r io.Reader) (err error) {
	br := bufio.NewReader(r)
	ev.ID = make([]byte, 32)
	if _, err = io.ReadFull(br, ev.ID); err != nil {
		return
	}
	ev.Pubkey = make([]byte, 32)
	if _, err = io.ReadFull(br, ev.Pubkey); err != nil {
		return
	}
	var buf8 [8]byte
	if _, err = io.ReadFull(br, buf8[:]); err != nil {
		return
	}
	ev.CreatedAt = int64(binary.BigEndian.Uint64(buf8[:]))
	var buf2 [2]byte
	if _, err = io.ReadFull(br, buf2[:]); err != nil {
		return
	}
	ev.Kind = binary.BigEndian.Uint16(buf2[:])
	nTags, err := br.ReadByte()
	if err != nil {
		return
	}
	ev.Tags = make(tag.S, 0, nTags)
	for i := byte(0); i < nTags; i++ {
		var t tag.T
		if t, err = readStringList(br); err != nil {
			return
		}
		ev.Tags = append(ev.Tags, t)
	}
	var buf4 [4]byte
	if _, err = io.ReadFull(br, buf4[:]); err != nil {
		return
	}
	contentLen := binary.BigEndian.Uint32(buf4[:])
	content := make([]byte, contentLen)
	if _, err = io.ReadFull(br, content); err != nil {
		return
	}
	ev.Content = string(content)
	ev.Sig = make([]byte, 64)
	_, err = io.ReadFull(br, ev.Sig)
	return
}

func pad32(b []byte) []byte {
	if len(b) == 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out, b)
	return out
}

func writeStringList(w *bufio.Writer, fields []string) (err error) {
	if len(fields) > 255 {
		return errorf.E("too many fields in tag: %d", len(fields))
	}
	if err = w.WriteByte(byte(len(fields))); err != nil {
		return
	}
	for _, f := range fields {
		b := []byte(f)
		var buf2 [2]byte
		binary.BigEndian.PutUint16(buf2[:], uint16(len(b)))
		if _, err = w.Write(buf2[:]); err != nil {
			return
		}
		if _, err = w.Write(b); err != nil {
			return
		}
	}
	return
}

func readStringList(r *bufio.Reader) (out tag.T, err error) {
	n, err := r.ReadByte()
	if err != nil {
		return
	}
	out = make(tag.T, n)
	for i := byte(0); i < n; i++ {
		var buf2 [2]byte
		if _, err = io.ReadFull(r, buf2[:]); err != nil {
			return
		}
		l := binary.BigEndian.Uint16(buf2[:])
		b := make([]byte, l)
		if _, err = io.ReadFull(r, b); err != nil {
			return
		}
		out[i] = string(b)
	}
	return
}
