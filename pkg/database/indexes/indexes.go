// Package indexes defines the binary layout of every key badger stores for
// this relay: one primary record per event, keyed by an opaque serial, and
// a family of secondary indexes over that serial letting the database
// answer filter queries without scanning every event.
//
// Every index shares the same shape: a one-byte prefix identifying the
// family, followed by its fields in a fixed order, the trailing field
// always being the event's serial. Passing a nil pointer for a field
// truncates encoding there, so the same Enc function produces either a
// full key (for Set/Get) or a key prefix (for a range scan).
package indexes

import (
	"io"

	"quadrelay.dev/pkg/database/indexes/types"
)

// Prefix identifies an index family.
type Prefix byte

const (
	PrefixVersion      Prefix = 0x00
	PrefixEvent        Prefix = 0x01
	PrefixExpiration   Prefix = 0x02
	PrefixFullIdPubkey Prefix = 0x03
	PrefixById         Prefix = 0x04
	PrefixByPubkeyKind Prefix = 0x05
	PrefixByPubkey     Prefix = 0x06
	PrefixByKind       Prefix = 0x07
	PrefixByCreatedAt  Prefix = 0x08
	PrefixByTag        Prefix = 0x09
)

// Write emits the prefix's single byte.
func (p Prefix) Write(w io.Writer) (n int, err error) {
	return w.Write([]byte{byte(p)})
}

// field is anything that can write and read itself from a byte stream.
type field interface {
	MarshalWrite(w io.Writer) error
	UnmarshalRead(r io.Reader) error
}

// writeFields writes the prefix and then each field, stopping at the first
// nil so a partially-specified key encodes as a prefix.
func writeFields(w io.Writer, prefix Prefix, fields ...field) (err error) {
	if _, err = prefix.Write(w); err != nil {
		return
	}
	for _, f := range fields {
		if isNilField(f) {
			return
		}
		if err = f.MarshalWrite(w); err != nil {
			return
		}
	}
	return
}

func isNilField(f field) bool {
	switch v := f.(type) {
	case *types.Uint16:
		return v == nil
	case *types.Uint32:
		return v == nil
	case *types.Uint64:
		return v == nil
	case *types.Uint40:
		return v == nil
	case *types.Ident:
		return v == nil
	case *types.Blob:
		return v == nil
	}
	return false
}

// readFields skips the prefix byte and reads each field in order.
func readFields(r io.Reader, fields ...field) (err error) {
	prefixBuf := make([]byte, 1)
	if _, err = io.ReadFull(r, prefixBuf); err != nil {
		return
	}
	for _, f := range fields {
		if err = f.UnmarshalRead(r); err != nil {
			return
		}
	}
	return
}

// --- version ---------------------------------------------------------

// VersionPrefix is the key prefix for the single schema-version record.
var VersionPrefix = PrefixVersion

type versionCodec struct{ ver *types.Uint32 }

func (c *versionCodec) MarshalWrite(w io.Writer) (err error) {
	if c.ver == nil {
		return writeFields(w, PrefixVersion)
	}
	return writeFields(w, PrefixVersion, c.ver)
}

func (c *versionCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.ver)
}

// VersionEnc encodes the version record. Pass nil to get the bare prefix.
func VersionEnc(ver *types.Uint32) *versionCodec { return &versionCodec{ver: ver} }

// VersionDec decodes into ver.
func VersionDec(ver *types.Uint32) *versionCodec { return &versionCodec{ver: ver} }

// VersionVars allocates a fresh destination for VersionDec.
func VersionVars() *types.Uint32 { return new(types.Uint32) }

// --- event (primary record) -------------------------------------------

type eventCodec struct{ ser *types.Uint40 }

func (c *eventCodec) MarshalWrite(w io.Writer) (err error) {
	if c.ser == nil {
		return writeFields(w, PrefixEvent)
	}
	return writeFields(w, PrefixEvent, c.ser)
}

func (c *eventCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.ser)
}

// EventEnc encodes the primary event key for ser. Pass nil for the bare
// prefix, used to scan every stored event.
func EventEnc(ser *types.Uint40) *eventCodec { return &eventCodec{ser: ser} }

// EventDec decodes a primary event key into ser.
func EventDec(ser *types.Uint40) *eventCodec { return &eventCodec{ser: ser} }

// EventVars allocates a fresh destination for EventDec.
func EventVars() *types.Uint40 { return new(types.Uint40) }

// --- expiration ----------------------------------------------------

type expirationCodec struct {
	exp *types.Uint64
	ser *types.Uint40
}

func (c *expirationCodec) MarshalWrite(w io.Writer) (err error) {
	if c.exp == nil {
		return writeFields(w, PrefixExpiration)
	}
	if c.ser == nil {
		return writeFields(w, PrefixExpiration, c.exp)
	}
	return writeFields(w, PrefixExpiration, c.exp, c.ser)
}

func (c *expirationCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.exp, c.ser)
}

// ExpirationEnc encodes an expiration-sweep key: events expiring at exp
// sort together so the sweeper can range-scan up to "now".
func ExpirationEnc(exp *types.Uint64, ser *types.Uint40) *expirationCodec {
	return &expirationCodec{exp: exp, ser: ser}
}

func ExpirationDec(exp *types.Uint64, ser *types.Uint40) *expirationCodec {
	return &expirationCodec{exp: exp, ser: ser}
}

func ExpirationVars() (*types.Uint64, *types.Uint40) {
	return new(types.Uint64), new(types.Uint40)
}

// --- full id/pubkey/created_at, keyed by serial -----------------------

type fullIdPubkeyCodec struct {
	ser *types.Uint40
	id  *types.Ident
	pub *types.Ident
	ca  *types.Uint64
}

func (c *fullIdPubkeyCodec) MarshalWrite(w io.Writer) (err error) {
	switch {
	case c.ser == nil:
		return writeFields(w, PrefixFullIdPubkey)
	case c.id == nil:
		return writeFields(w, PrefixFullIdPubkey, c.ser)
	case c.pub == nil:
		return writeFields(w, PrefixFullIdPubkey, c.ser, c.id)
	case c.ca == nil:
		return writeFields(w, PrefixFullIdPubkey, c.ser, c.id, c.pub)
	default:
		return writeFields(w, PrefixFullIdPubkey, c.ser, c.id, c.pub, c.ca)
	}
}

func (c *fullIdPubkeyCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.ser, c.id, c.pub, c.ca)
}

// FullIdPubkeyEnc encodes the lookup-by-serial record carrying an event's
// id, pubkey and created_at, so deletion and sync logic can get those
// three fields without reading and decoding the whole event.
func FullIdPubkeyEnc(
	ser *types.Uint40, id, pub *types.Ident, ca *types.Uint64,
) *fullIdPubkeyCodec {
	return &fullIdPubkeyCodec{ser: ser, id: id, pub: pub, ca: ca}
}

func FullIdPubkeyDec(
	ser *types.Uint40, id, pub *types.Ident, ca *types.Uint64,
) *fullIdPubkeyCodec {
	return &fullIdPubkeyCodec{ser: ser, id: id, pub: pub, ca: ca}
}

func FullIdPubkeyVars() (*types.Uint40, *types.Ident, *types.Ident, *types.Uint64) {
	return new(types.Uint40), new(types.Ident), new(types.Ident), new(types.Uint64)
}

// --- by id --------------------------------------------------------

type byIdCodec struct {
	id  *types.Ident
	ser *types.Uint40
}

func (c *byIdCodec) MarshalWrite(w io.Writer) (err error) {
	if c.id == nil {
		return writeFields(w, PrefixById)
	}
	if c.ser == nil {
		return writeFields(w, PrefixById, c.id)
	}
	return writeFields(w, PrefixById, c.id, c.ser)
}

func (c *byIdCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.id, c.ser)
}

// ByIdEnc encodes the event-id lookup index, used to find an event's
// serial from its 32-byte id.
func ByIdEnc(id *types.Ident, ser *types.Uint40) *byIdCodec {
	return &byIdCodec{id: id, ser: ser}
}

func ByIdDec(id *types.Ident, ser *types.Uint40) *byIdCodec {
	return &byIdCodec{id: id, ser: ser}
}

func ByIdVars() (*types.Ident, *types.Uint40) {
	return new(types.Ident), new(types.Uint40)
}

// --- by pubkey+kind -------------------------------------------------

type byPubkeyKindCodec struct {
	pub  *types.Ident
	kind *types.Uint16
	ser  *types.Uint40
}

func (c *byPubkeyKindCodec) MarshalWrite(w io.Writer) (err error) {
	switch {
	case c.pub == nil:
		return writeFields(w, PrefixByPubkeyKind)
	case c.kind == nil:
		return writeFields(w, PrefixByPubkeyKind, c.pub)
	case c.ser == nil:
		return writeFields(w, PrefixByPubkeyKind, c.pub, c.kind)
	default:
		return writeFields(w, PrefixByPubkeyKind, c.pub, c.kind, c.ser)
	}
}

func (c *byPubkeyKindCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.pub, c.kind, c.ser)
}

// ByPubkeyKindEnc encodes the (pubkey, kind) index, used to resolve
// replaceable events and author+kind filters.
func ByPubkeyKindEnc(
	pub *types.Ident, kind *types.Uint16, ser *types.Uint40,
) *byPubkeyKindCodec {
	return &byPubkeyKindCodec{pub: pub, kind: kind, ser: ser}
}

func ByPubkeyKindDec(
	pub *types.Ident, kind *types.Uint16, ser *types.Uint40,
) *byPubkeyKindCodec {
	return &byPubkeyKindCodec{pub: pub, kind: kind, ser: ser}
}

func ByPubkeyKindVars() (*types.Ident, *types.Uint16, *types.Uint40) {
	return new(types.Ident), new(types.Uint16), new(types.Uint40)
}

// --- by pubkey -------------------------------------------------------

type byPubkeyCodec struct {
	pub *types.Ident
	ser *types.Uint40
}

func (c *byPubkeyCodec) MarshalWrite(w io.Writer) (err error) {
	if c.pub == nil {
		return writeFields(w, PrefixByPubkey)
	}
	if c.ser == nil {
		return writeFields(w, PrefixByPubkey, c.pub)
	}
	return writeFields(w, PrefixByPubkey, c.pub, c.ser)
}

func (c *byPubkeyCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.pub, c.ser)
}

func ByPubkeyEnc(pub *types.Ident, ser *types.Uint40) *byPubkeyCodec {
	return &byPubkeyCodec{pub: pub, ser: ser}
}

func ByPubkeyDec(pub *types.Ident, ser *types.Uint40) *byPubkeyCodec {
	return &byPubkeyCodec{pub: pub, ser: ser}
}

func ByPubkeyVars() (*types.Ident, *types.Uint40) {
	return new(types.Ident), new(types.Uint40)
}

// --- by kind ----------------------------------------------------------

type byKindCodec struct {
	kind *types.Uint16
	ser  *types.Uint40
}

func (c *byKindCodec) MarshalWrite(w io.Writer) (err error) {
	if c.kind == nil {
		return writeFields(w, PrefixByKind)
	}
	if c.ser == nil {
		return writeFields(w, PrefixByKind, c.kind)
	}
	return writeFields(w, PrefixByKind, c.kind, c.ser)
}

func (c *byKindCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.kind, c.ser)
}

func ByKindEnc(kind *types.Uint16, ser *types.Uint40) *byKindCodec {
	return &byKindCodec{kind: kind, ser: ser}
}

func ByKindDec(kind *types.Uint16, ser *types.Uint40) *byKindCodec {
	return &byKindCodec{kind: kind, ser: ser}
}

func ByKindVars() (*types.Uint16, *types.Uint40) {
	return new(types.Uint16), new(types.Uint40)
}

// --- by created_at ------------------------------------------------

type byCreatedAtCodec struct {
	ca  *types.Uint64
	ser *types.Uint40
}

func (c *byCreatedAtCodec) MarshalWrite(w io.Writer) (err error) {
	if c.ca == nil {
		return writeFields(w, PrefixByCreatedAt)
	}
	if c.ser == nil {
		return writeFields(w, PrefixByCreatedAt, c.ca)
	}
	return writeFields(w, PrefixByCreatedAt, c.ca, c.ser)
}

func (c *byCreatedAtCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.ca, c.ser)
}

func ByCreatedAtEnc(ca *types.Uint64, ser *types.Uint40) *byCreatedAtCodec {
	return &byCreatedAtCodec{ca: ca, ser: ser}
}

func ByCreatedAtDec(ca *types.Uint64, ser *types.Uint40) *byCreatedAtCodec {
	return &byCreatedAtCodec{ca: ca, ser: ser}
}

func ByCreatedAtVars() (*types.Uint64, *types.Uint40) {
	return new(types.Uint64), new(types.Uint40)
}

// --- by tag -------------------------------------------------------

type byTagCodec struct {
	letter *types.Uint16 // low byte holds the tag letter
	value  *types.Blob
	ser    *types.Uint40
}

func (c *byTagCodec) MarshalWrite(w io.Writer) (err error) {
	switch {
	case c.letter == nil:
		return writeFields(w, PrefixByTag)
	case c.value == nil:
		return writeFields(w, PrefixByTag, c.letter)
	case c.ser == nil:
		return writeFields(w, PrefixByTag, c.letter, c.value)
	default:
		return writeFields(w, PrefixByTag, c.letter, c.value, c.ser)
	}
}

func (c *byTagCodec) UnmarshalRead(r io.Reader) (err error) {
	return readFields(r, c.letter, c.value, c.ser)
}

// ByTagEnc encodes the generic tag-value index, used to answer "#x"
// filter queries. letter carries the single tag-name byte in its low
// byte.
func ByTagEnc(
	letter *types.Uint16, value *types.Blob, ser *types.Uint40,
) *byTagCodec {
	return &byTagCodec{letter: letter, value: value, ser: ser}
}

func ByTagDec(
	letter *types.Uint16, value *types.Blob, ser *types.Uint40,
) *byTagCodec {
	return &byTagCodec{letter: letter, value: value, ser: ser}
}

func ByTagVars() (*types.Uint16, *types.Blob, *types.Uint40) {
	return new(types.Uint16), new(types.Blob), new(types.Uint40)
}

// TagLetter packs a single ASCII tag-name byte into a Uint16 field so it
// can share the fixed-width codec machinery.
func TagLetter(b byte) *types.Uint16 {
	u := new(types.Uint16)
	u.Set(uint16(b))
	return u
}
