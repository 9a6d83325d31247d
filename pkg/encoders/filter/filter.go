// Package filter implements a nostr filter: a conjunction of constraints
// used both to scan the historical log and to test newly committed events
// against live subscriptions.
package filter

import (
	"encoding/json"
	"strings"

	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/kind"
	"quadrelay.dev/pkg/encoders/tag"
	"quadrelay.dev/pkg/encoders/timestamp"
)

// F is a single filter: every non-empty field must match for an event to
// satisfy it.
type F struct {
	IDs     []string
	Authors []string
	Kinds   kind.S
	Tags    tag.S // one tag.T per "#x" query, e.g. tag.New("#e", "id1", "id2")
	Since   *timestamp.T
	Until   *timestamp.T
	Search  string
	Limit   *int
}

// New returns an empty filter ready to be populated.
func New() *F { return &F{} }

// Matches reports whether ev satisfies every constraint present in f. A
// zero-value field (nil slice, nil bound) imposes no constraint.
func (f *F) Matches(ev *event.E) bool {
	if len(f.IDs) > 0 && !containsHex(f.IDs, ev.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsHex(f.Authors, ev.Pubkey) {
		return false
	}
	if len(f.Kinds) > 0 && !f.Kinds.Contains(ev.Kind) {
		return false
	}
	if f.Since != nil && ev.CreatedAt < f.Since.I64() {
		return false
	}
	if f.Until != nil && ev.CreatedAt > f.Until.I64() {
		return false
	}
	for _, q := range f.Tags {
		key := strings.TrimPrefix(q.Key(), "#")
		if len(q) < 2 {
			continue
		}
		if !ev.Tags.ContainsAny(key, q[1:]) {
			return false
		}
	}
	if f.Search != "" && !strings.Contains(
		strings.ToLower(ev.Content), strings.ToLower(f.Search),
	) {
		return false
	}
	return true
}

func containsHex(hexes []string, raw []byte) bool {
	enc := hex.Enc(raw)
	for _, h := range hexes {
		if strings.EqualFold(h, enc) {
			return true
		}
	}
	return false
}

// Sort canonicalizes field ordering so two filters built from the same set
// of constraints serialize identically, which lets a scan plan deduplicate
// equivalent filters.
func (f *F) Sort() {
	sortStrings(f.IDs)
	sortStrings(f.Authors)
	f.Kinds.Sort()
	f.Tags.Sort()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// wireFilter is the JSON-object shape of a filter: the fixed keys plus any
// number of dynamic "#<letter>" tag-query keys.
type wireFilter struct {
	IDs     []string     `json:"ids,omitempty"`
	Authors []string     `json:"authors,omitempty"`
	Kinds   []uint16     `json:"kinds,omitempty"`
	Since   *int64       `json:"since,omitempty"`
	Until   *int64       `json:"until,omitempty"`
	Search  string       `json:"search,omitempty"`
	Limit   *int         `json:"limit,omitempty"`
}

// MarshalJSON renders the filter as a NIP-01 filter object, with tag
// queries flattened into "#<letter>" keys.
func (f *F) MarshalJSON() ([]byte, error) {
	w := wireFilter{
		IDs:     f.IDs,
		Authors: f.Authors,
		Kinds:   f.Kinds.ToUint16(),
		Search:  f.Search,
		Limit:   f.Limit,
	}
	if f.Since != nil {
		v := f.Since.I64()
		w.Since = &v
	}
	if f.Until != nil {
		v := f.Until.I64()
		w.Until = &v
	}
	base, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	if len(f.Tags) == 0 {
		return base, nil
	}
	// splice tag queries into the object: drop the trailing '}', append
	// each "#x":[...] pair, then close.
	out := base[:len(base)-1]
	if len(base) > 2 {
		out = append(out, ',')
	}
	for i, q := range f.Tags {
		if i > 0 {
			out = append(out, ',')
		}
		key, err := json.Marshal(q.Key())
		if err != nil {
			return nil, err
		}
		vals, err := json.Marshal([]string(q[1:]))
		if err != nil {
			return nil, err
		}
		out = append(out, key...)
		out = append(out, ':')
		out = append(out, vals...)
	}
	out = append(out, '}')
	return out, nil
}

// UnmarshalJSON parses a NIP-01 filter object, collecting any "#<letter>"
// keys into Tags.
func (f *F) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var w wireFilter
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	f.IDs = w.IDs
	f.Authors = w.Authors
	f.Kinds = kind.NewS(w.Kinds...)
	f.Search = w.Search
	f.Limit = w.Limit
	if w.Since != nil {
		s := timestamp.T(*w.Since)
		f.Since = &s
	}
	if w.Until != nil {
		u := timestamp.T(*w.Until)
		f.Until = &u
	}
	f.Tags = nil
	for k, v := range raw {
		if !strings.HasPrefix(k, "#") || len(k) != 2 {
			continue
		}
		var vals []string
		if err := json.Unmarshal(v, &vals); err != nil {
			return err
		}
		fields := append([]string{k}, vals...)
		f.Tags = append(f.Tags, tag.New(fields...))
	}
	f.Tags.Sort()
	return nil
}
