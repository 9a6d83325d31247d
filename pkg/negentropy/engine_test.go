package negentropy

import (
	"bytes"
	"testing"
)

func mkItem(ts int64, b byte) Item {
	var it Item
	it.Timestamp = ts
	it.ID[31] = b
	return it
}

func TestReconcileIdenticalSetsProducesNoFurtherMessage(t *testing.T) {
	items := Items{mkItem(1, 1), mkItem(2, 2), mkItem(3, 3)}
	a := NewSession(append(Items{}, items...), 0)
	b := NewSession(append(Items{}, items...), 0)

	open := a.Open()
	outgoing, have, need, exceeded, err := b.Reconcile(open)
	if err != nil {
		t.Fatal(err)
	}
	if exceeded {
		t.Fatal("unexpectedly exceeded maxSyncEvents")
	}
	if len(outgoing) != 0 {
		t.Fatalf("expected no outgoing ranges for identical sets, got %d", len(outgoing))
	}
	if len(have) != 0 || len(need) != 0 {
		t.Fatalf("expected no have/need for identical sets, got have=%d need=%d", len(have), len(need))
	}
}

func TestReconcileSmallSetsResolveViaIdListRoundTrip(t *testing.T) {
	local := Items{mkItem(1, 1), mkItem(2, 2)}
	peer := Items{mkItem(1, 1), mkItem(3, 3)}

	a := NewSession(append(Items{}, peer...), 0)
	b := NewSession(append(Items{}, local...), 0)

	open := a.Open()
	if len(open) != 1 || open[0].Mode != ModeIdList || open[0].Terminal {
		t.Fatalf("expected a single non-terminal IdList range for a small set, got %+v", open)
	}

	// b sees a's id list; it's missing item 3 and holds item 2 that a
	// lacks, so it reports that diff and echoes its own ids back once.
	outgoing, have, need, exceeded, err := b.Reconcile(open)
	if err != nil {
		t.Fatal(err)
	}
	if exceeded {
		t.Fatal("unexpectedly exceeded maxSyncEvents")
	}
	if len(have) != 1 || have[0] != mkItem(2, 2).ID {
		t.Fatalf("expected have={id 2}, got %v", have)
	}
	if len(need) != 1 || need[0] != mkItem(3, 3).ID {
		t.Fatalf("expected need={id 3}, got %v", need)
	}
	if len(outgoing) != 1 || !outgoing[0].Terminal {
		t.Fatalf("expected one terminal echo range, got %+v", outgoing)
	}

	// a receives b's terminal echo and learns its own side of the diff;
	// being terminal, it must not reply again.
	final, aHave, aNeed, exceeded, err := a.Reconcile(outgoing)
	if err != nil {
		t.Fatal(err)
	}
	if exceeded {
		t.Fatal("unexpectedly exceeded maxSyncEvents")
	}
	if len(final) != 0 {
		t.Fatalf("expected a terminal reply to end the exchange, got %+v", final)
	}
	if len(aHave) != 1 || aHave[0] != mkItem(3, 3).ID {
		t.Fatalf("expected a to report having id 3, got %v", aHave)
	}
	if len(aNeed) != 1 || aNeed[0] != mkItem(2, 2).ID {
		t.Fatalf("expected a to report needing id 2, got %v", aNeed)
	}
}

func TestReconcileLargeMismatchedSetsSplitThenConverge(t *testing.T) {
	var local, peer Items
	for i := int64(0); i < 200; i++ {
		local = append(local, mkItem(i, byte(i%256)))
		if i != 50 {
			peer = append(peer, mkItem(i, byte(i%256)))
		}
	}
	a := NewSession(peer, 0)
	b := NewSession(local, 0)

	msg := a.Open()
	var haveTotal, needTotal int
	for round := 0; round < 20 && len(msg) > 0; round++ {
		outgoing, have, need, exceeded, err := b.Reconcile(msg)
		if err != nil {
			t.Fatal(err)
		}
		if exceeded {
			t.Fatal("unexpectedly exceeded maxSyncEvents")
		}
		haveTotal += len(have)
		needTotal += len(need)
		if len(outgoing) == 0 {
			break
		}
		msg, have, need, exceeded, err = a.Reconcile(outgoing)
		if err != nil {
			t.Fatal(err)
		}
		if exceeded {
			t.Fatal("unexpectedly exceeded maxSyncEvents")
		}
		haveTotal += len(have)
		needTotal += len(need)
	}
	// The one-item difference is reported from both sides once each side
	// has processed an id list: local reports a "have" (peer lacks it)
	// and peer reports the matching "need" (it's missing that item).
	if haveTotal != 1 {
		t.Fatalf("expected exactly one have report across both sides, got %d", haveTotal)
	}
	if needTotal != 1 {
		t.Fatalf("expected exactly one need report across both sides, got %d", needTotal)
	}
}

func TestReconcileExceedingMaxSyncEventsReportsExceeded(t *testing.T) {
	var local, peer Items
	for i := int64(0); i < 100; i++ {
		local = append(local, mkItem(i, byte(i)))
	}
	a := NewSession(peer, 1)
	b := NewSession(local, 1)
	open := a.Open()
	_, _, _, exceeded, err := b.Reconcile(open)
	if err != nil {
		t.Fatal(err)
	}
	if !exceeded {
		t.Fatal("expected a tiny maxSyncEvents bound to be exceeded")
	}
}

func TestMessageRoundTrip(t *testing.T) {
	items := Items{mkItem(10, 1), mkItem(20, 2), mkItem(30, 3)}
	msg := rangeMessage(items, zeroBound, infiniteBound)

	var buf bytes.Buffer
	if err := msg.Marshal(&buf); err != nil {
		t.Fatal(err)
	}
	decoded, err := Unmarshal(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != len(msg) {
		t.Fatalf("got %d ranges, want %d", len(decoded), len(msg))
	}
	for i := range msg {
		if decoded[i].Mode != msg[i].Mode {
			t.Fatalf("range %d: mode mismatch", i)
		}
		if !bytes.Equal(decoded[i].Fingerprint, msg[i].Fingerprint) {
			t.Fatalf("range %d: fingerprint mismatch", i)
		}
		if len(decoded[i].IDs) != len(msg[i].IDs) {
			t.Fatalf("range %d: id count mismatch", i)
		}
	}
}

func TestFingerprintIsOrderIndependent(t *testing.T) {
	forward := Items{mkItem(1, 1), mkItem(2, 2), mkItem(3, 3)}
	backward := Items{mkItem(3, 3), mkItem(1, 1), mkItem(2, 2)}
	if !bytes.Equal(fingerprintOf(forward), fingerprintOf(backward)) {
		t.Fatal("fingerprint should not depend on item add order")
	}
}

func TestFingerprintDiffersForDifferentSets(t *testing.T) {
	a := Items{mkItem(1, 1), mkItem(2, 2)}
	b := Items{mkItem(1, 1), mkItem(2, 9)}
	if bytes.Equal(fingerprintOf(a), fingerprintOf(b)) {
		t.Fatal("expected different sets to produce different fingerprints")
	}
}
