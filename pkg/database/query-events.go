package database

import (
	"context"
	"sort"

	"lol.mleku.dev/chk"
	"quadrelay.dev/pkg/database/indexes/types"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/filter"
)

// QueryEvents resolves f to its matching events, applying f.Limit after
// sorting results newest-first.
func (d *D) QueryEvents(c context.Context, f *filter.F) (evs event.S, err error) {
	var sers types.Uint40s
	if sers, err = d.GetSerialsFromFilter(f); chk.E(err) {
		return
	}
	var evMap map[uint64]*event.E
	if evMap, err = d.FetchEventsBySerials(sers); chk.E(err) {
		return
	}
	for _, ev := range evMap {
		evs = append(evs, ev)
	}
	sort.Slice(evs, func(i, j int) bool { return evs[i].CreatedAt > evs[j].CreatedAt })
	if f.Limit != nil && len(evs) > *f.Limit {
		evs = evs[:*f.Limit]
	}
	return
}
