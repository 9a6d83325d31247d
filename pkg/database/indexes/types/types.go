// Package types implements the fixed-width binary fields used to build
// database index keys: serials, timestamps, kind numbers and raw
// identifiers, each able to write and read itself from a byte stream so an
// index key can be assembled field by field.
package types

import (
	"encoding/binary"
	"io"
	"sort"

	"lol.mleku.dev/errorf"
)

// Uint16 is a two-byte big-endian field, used to encode a kind number.
type Uint16 struct{ v uint16 }

func (u *Uint16) Set(v uint16) { u.v = v }
func (u *Uint16) Get() uint16  { return u.v }

func (u *Uint16) Bytes() []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, u.v)
	return b
}

func (u *Uint16) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write(u.Bytes())
	return
}

func (u *Uint16) UnmarshalRead(r io.Reader) (err error) {
	b := make([]byte, 2)
	if _, err = io.ReadFull(r, b); err != nil {
		return
	}
	u.v = binary.BigEndian.Uint16(b)
	return
}

// Uint32 is a four-byte big-endian field, used to encode the database
// schema version.
type Uint32 struct{ v uint32 }

func (u *Uint32) Set(v uint32) { u.v = v }
func (u *Uint32) Get() uint32  { return u.v }

func (u *Uint32) Bytes() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, u.v)
	return b
}

func (u *Uint32) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write(u.Bytes())
	return
}

func (u *Uint32) UnmarshalRead(r io.Reader) (err error) {
	b := make([]byte, 4)
	if _, err = io.ReadFull(r, b); err != nil {
		return
	}
	u.v = binary.BigEndian.Uint32(b)
	return
}

// Uint64 is an eight-byte big-endian field, used to encode created_at and
// expiration timestamps.
type Uint64 struct{ v uint64 }

func (u *Uint64) Set(v uint64) { u.v = v }
func (u *Uint64) Get() uint64  { return u.v }

func (u *Uint64) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, u.v)
	return b
}

func (u *Uint64) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write(u.Bytes())
	return
}

func (u *Uint64) UnmarshalRead(r io.Reader) (err error) {
	b := make([]byte, 8)
	if _, err = io.ReadFull(r, b); err != nil {
		return
	}
	u.v = binary.BigEndian.Uint64(b)
	return
}

// Uint40Len is the byte width of a serial number: wide enough for billions
// of events while keeping index keys compact.
const Uint40Len = 5

// Uint40 is a five-byte big-endian field, used to encode a database serial.
type Uint40 struct{ v uint64 }

// MaxUint40 is the largest value a Uint40 can hold.
const MaxUint40 = (1 << 40) - 1

func (u *Uint40) Set(v uint64) (err error) {
	if v > MaxUint40 {
		err = errorf.E("serial %d overflows 40 bits", v)
		return
	}
	u.v = v
	return
}

func (u *Uint40) Get() uint64 { return u.v }

func (u *Uint40) Bytes() []byte {
	b := make([]byte, Uint40Len)
	b[0] = byte(u.v >> 32)
	b[1] = byte(u.v >> 24)
	b[2] = byte(u.v >> 16)
	b[3] = byte(u.v >> 8)
	b[4] = byte(u.v)
	return b
}

func (u *Uint40) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write(u.Bytes())
	return
}

func (u *Uint40) UnmarshalRead(r io.Reader) (err error) {
	b := make([]byte, Uint40Len)
	if _, err = io.ReadFull(r, b); err != nil {
		return
	}
	u.v = uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 |
		uint64(b[3])<<8 | uint64(b[4])
	return
}

// NewUint40FromBytes builds a Uint40 from the first Uint40Len bytes of b,
// read big-endian as Uint40.Bytes writes them; any further bytes are
// ignored.
func NewUint40FromBytes(b []byte) (u *Uint40, err error) {
	if len(b) < Uint40Len {
		err = errorf.E("short serial: %d bytes", len(b))
		return
	}
	u = new(Uint40)
	u.v = uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 |
		uint64(b[3])<<8 | uint64(b[4])
	return
}

// Uint40s is a sortable list of serials, used as the accumulated result of
// a range scan before events are fetched in ascending order.
type Uint40s []*Uint40

func (u Uint40s) Len() int           { return len(u) }
func (u Uint40s) Less(i, j int) bool { return u[i].Get() < u[j].Get() }
func (u Uint40s) Swap(i, j int)      { u[i], u[j] = u[j], u[i] }
func (u Uint40s) Sort()              { sort.Sort(u) }

// Ident is a fixed 32-byte identifier, used for event ids and pubkeys.
type Ident struct{ v [32]byte }

func (id *Ident) Set(b []byte) (err error) {
	if len(b) != 32 {
		err = errorf.E("identifier must be 32 bytes, got %d", len(b))
		return
	}
	copy(id.v[:], b)
	return
}

func (id *Ident) Bytes() []byte {
	b := make([]byte, 32)
	copy(b, id.v[:])
	return b
}

func (id *Ident) MarshalWrite(w io.Writer) (err error) {
	_, err = w.Write(id.v[:])
	return
}

func (id *Ident) UnmarshalRead(r io.Reader) (err error) {
	_, err = io.ReadFull(r, id.v[:])
	return
}

// Blob is a length-prefixed variable-width field, used to encode tag
// values of arbitrary length in the by-tag index.
type Blob struct{ v []byte }

func (b *Blob) Set(v []byte) { b.v = v }
func (b *Blob) Get() []byte  { return b.v }

func (b *Blob) MarshalWrite(w io.Writer) (err error) {
	l := make([]byte, 2)
	binary.BigEndian.PutUint16(l, uint16(len(b.v)))
	if _, err = w.Write(l); err != nil {
		return
	}
	_, err = w.Write(b.v)
	return
}

func (b *Blob) UnmarshalRead(r io.Reader) (err error) {
	l := make([]byte, 2)
	if _, err = io.ReadFull(r, l); err != nil {
		return
	}
	n := binary.BigEndian.Uint16(l)
	b.v = make([]byte, n)
	_, err = io.ReadFull(r, b.v)
	return
}
