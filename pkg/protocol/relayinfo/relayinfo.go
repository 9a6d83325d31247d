// Package relayinfo implements the NIP-11 relay information document: the
// JSON object a relay serves on its root URL when asked with an
// "Accept: application/nostr+json" header, advertising which NIPs it
// supports and what limits it enforces.
package relayinfo

import "encoding/json"

// NIP identifies a numbered Nostr Implementation Possibility by its
// number, letting the list of supported NIPs sort numerically.
type NIP int

const (
	BasicProtocol                  NIP = 1
	Authentication                 NIP = 42
	EncryptedDirectMessage         NIP = 4
	EventDeletion                  NIP = 9
	RelayInformationDocument       NIP = 11
	GenericTagQueries              NIP = 12
	EventTreatment                 NIP = 16
	CommandResults                 NIP = 20
	ParameterizedReplaceableEvents NIP = 33
	ExpirationTimestamp            NIP = 40
	ProtectedEvents                NIP = 70
	RelayListMetadata              NIP = 65
	SearchCapability                NIP = 50
	RangeReconciliation             NIP = 77
)

// NIPList is a sortable list of NIP numbers, rendered as the "supported_nips"
// field of the information document.
type NIPList []NIP

func (n NIPList) Len() int           { return len(n) }
func (n NIPList) Less(i, j int) bool { return n[i] < n[j] }
func (n NIPList) Swap(i, j int)      { n[i], n[j] = n[j], n[i] }

// GetList returns nips as a NIPList ready to sort and embed in a document.
func GetList(nips ...NIP) NIPList { return NIPList(nips) }

// Limits reports the relay's enforced operational limits, per NIP-11's
// "limitation" object.
type Limits struct {
	MaxMessageLength int  `json:"max_message_length,omitempty"`
	MaxSubscriptions int  `json:"max_subscriptions,omitempty"`
	MaxFilters       int  `json:"max_filters,omitempty"`
	MaxLimit         int  `json:"max_limit,omitempty"`
	MaxEventTags     int  `json:"max_event_tags,omitempty"`
	MaxContentLength int  `json:"max_content_length,omitempty"`
	AuthRequired     bool `json:"auth_required,omitempty"`
	RestrictedWrites bool `json:"restricted_writes,omitempty"`
}

// T is the NIP-11 relay information document.
type T struct {
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	PubKey        string   `json:"pubkey,omitempty"`
	Contact       string   `json:"contact,omitempty"`
	SupportedNIPs []NIP    `json:"supported_nips,omitempty"`
	Nips          NIPList  `json:"-"`
	Software      string   `json:"software,omitempty"`
	Version       string   `json:"version,omitempty"`
	Limitation    Limits   `json:"limitation,omitempty"`
	Icon          string   `json:"icon,omitempty"`
}

// MarshalJSON renders T, copying Nips into the wire field name NIP-11
// actually specifies ("supported_nips") since Go struct tags can't alias
// two fields to the same JSON key.
func (t T) MarshalJSON() ([]byte, error) {
	type alias T
	a := alias(t)
	a.SupportedNIPs = a.Nips
	return json.Marshal(a)
}
