package negentropy

import (
	"bufio"
	"encoding/binary"
	"io"

	"lol.mleku.dev/errorf"
)

// Mode identifies what a RangeMsg carries for its span: a fingerprint to
// compare against, or the literal ids the sender holds in that span.
type Mode byte

const (
	// ModeFingerprint carries a fixed-length digest of every item the
	// sender holds within [Lower, Upper).
	ModeFingerprint Mode = 1
	// ModeIdList carries every id the sender holds within [Lower, Upper)
	// outright, once the span is small enough that this costs less than
	// another round of splitting.
	ModeIdList Mode = 2
)

// RangeMsg is one span of a Message: self-contained, carrying its own
// bounds rather than relying on the previous entry's upper bound, so a
// Message can name a non-contiguous set of spans (every span the sender
// considered settled is simply omitted).
//
// Terminal only has meaning for Mode == ModeIdList: it marks an id list
// sent purely to answer a peer's earlier id list (so the peer can compute
// its own have/need) rather than a fresh proposal. A receiver echoes its
// own id list back for a mismatched range exactly once, with Terminal
// set, so the exchange for that range ends after one round trip instead
// of bouncing id lists back and forth indefinitely.
type RangeMsg struct {
	Lower, Upper Bound
	Mode         Mode
	Terminal     bool
	Fingerprint  []byte
	IDs          [][IDSize]byte
}

// Message is one side's turn in a reconciliation session: every span it
// has something to report for.
type Message []RangeMsg

// Marshal renders the message to its compact binary wire form; the
// caller hex-encodes this for NEG-OPEN/NEG-MSG.
func (m Message) Marshal(w io.Writer) (err error) {
	bw := bufio.NewWriter(w)
	var buf4 [4]byte
	binary.BigEndian.PutUint32(buf4[:], uint32(len(m)))
	if _, err = bw.Write(buf4[:]); err != nil {
		return
	}
	for _, rm := range m {
		if err = writeBound(bw, rm.Lower); err != nil {
			return
		}
		if err = writeBound(bw, rm.Upper); err != nil {
			return
		}
		if err = bw.WriteByte(byte(rm.Mode)); err != nil {
			return
		}
		var terminalByte byte
		if rm.Terminal {
			terminalByte = 1
		}
		if err = bw.WriteByte(terminalByte); err != nil {
			return
		}
		switch rm.Mode {
		case ModeFingerprint:
			var l [2]byte
			binary.BigEndian.PutUint16(l[:], uint16(len(rm.Fingerprint)))
			if _, err = bw.Write(l[:]); err != nil {
				return
			}
			if _, err = bw.Write(rm.Fingerprint); err != nil {
				return
			}
		case ModeIdList:
			binary.BigEndian.PutUint32(buf4[:], uint32(len(rm.IDs)))
			if _, err = bw.Write(buf4[:]); err != nil {
				return
			}
			for _, id := range rm.IDs {
				if _, err = bw.Write(id[:]); err != nil {
					return
				}
			}
		default:
			return errorf.E("negentropy: unknown range mode %d", rm.Mode)
		}
	}
	return bw.Flush()
}

// Unmarshal reads a Message back from Marshal's encoding.
func Unmarshal(r io.Reader) (m Message, err error) {
	br := bufio.NewReader(r)
	var buf4 [4]byte
	if _, err = io.ReadFull(br, buf4[:]); err != nil {
		return
	}
	n := binary.BigEndian.Uint32(buf4[:])
	m = make(Message, 0, n)
	for i := uint32(0); i < n; i++ {
		var rm RangeMsg
		if rm.Lower, err = readBound(br); err != nil {
			return
		}
		if rm.Upper, err = readBound(br); err != nil {
			return
		}
		var modeByte byte
		if modeByte, err = br.ReadByte(); err != nil {
			return
		}
		rm.Mode = Mode(modeByte)
		var terminalByte byte
		if terminalByte, err = br.ReadByte(); err != nil {
			return
		}
		rm.Terminal = terminalByte != 0
		switch rm.Mode {
		case ModeFingerprint:
			var l [2]byte
			if _, err = io.ReadFull(br, l[:]); err != nil {
				return
			}
			rm.Fingerprint = make([]byte, binary.BigEndian.Uint16(l[:]))
			if _, err = io.ReadFull(br, rm.Fingerprint); err != nil {
				return
			}
		case ModeIdList:
			if _, err = io.ReadFull(br, buf4[:]); err != nil {
				return
			}
			count := binary.BigEndian.Uint32(buf4[:])
			rm.IDs = make([][IDSize]byte, count)
			for j := uint32(0); j < count; j++ {
				if _, err = io.ReadFull(br, rm.IDs[j][:]); err != nil {
					return
				}
			}
		default:
			err = errorf.E("negentropy: unknown range mode %d in message", rm.Mode)
			return
		}
		m = append(m, rm)
	}
	return
}

func writeBound(w io.Writer, b Bound) (err error) {
	var buf [8 + IDSize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(b.Timestamp))
	copy(buf[8:], b.ID[:])
	_, err = w.Write(buf[:])
	return
}

func readBound(r io.Reader) (b Bound, err error) {
	var buf [8 + IDSize]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return
	}
	b.Timestamp = int64(binary.BigEndian.Uint64(buf[0:8]))
	copy(b.ID[:], buf[8:])
	return
}
