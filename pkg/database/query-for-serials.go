package database

import (
	"context"

	"lol.mleku.dev/chk"
	"quadrelay.dev/pkg/database/indexes/types"
	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/interfaces/store"
)

// QueryForSerials takes a filter and returns the serials of events that match.
// Serials looked up by f.IDs keep the order of f.IDs; otherwise they follow
// QueryForIds' order (newest first, or search-ranked when f.Search is set).
func (d *D) QueryForSerials(c context.Context, f *filter.F) (
	sers types.Uint40s, err error,
) {
	var founds []*types.Uint40
	var idPkTs []*store.IdPkTs
	if len(f.IDs) > 0 {
		for _, idHex := range f.IDs {
			var id []byte
			if id, err = hex.Dec(idHex); chk.E(err) {
				continue
			}
			var ser *types.Uint40
			if ser, err = d.GetSerialById(id); chk.E(err) {
				continue
			}
			founds = append(founds, ser)
		}
		var tmp []*store.IdPkTs
		if tmp, err = d.GetFullIdPubkeyBySerials(founds); chk.E(err) {
			return
		}
		idPkTs = append(idPkTs, tmp...)
	} else {
		if idPkTs, err = d.QueryForIds(c, f); chk.E(err) {
			return
		}
	}
	// extract the serials
	for _, idpk := range idPkTs {
		ser := new(types.Uint40)
		if err = ser.Set(idpk.Ser); chk.E(err) {
			continue
		}
		sers = append(sers, ser)
	}
	return
}
