// Package kind gives names and classification rules to the event kind
// numbers defined by the nostr protocol: which are replaceable, which are
// parameterized-replaceable, which are ephemeral (never stored) and which
// carry content that must not be readable by anyone outside the event's
// participants.
package kind

import "sync"

// K is a nostr event kind number.
type K uint16

// New wraps a raw kind number as a K, used when building a filter or index
// key from a number read off the wire.
func New(k uint16) K { return K(k) }

// ToInt returns the kind as a plain int, useful for filter construction.
func (k K) ToInt() int { return int(k) }

// Name returns a human-readable identifier for the kind, or "" if unknown.
func (k K) Name() string { return GetString(uint16(k)) }

// Equal reports whether k matches the given raw kind number.
func (k K) Equal(k2 uint16) bool { return uint16(k) == k2 }

const (
	ProfileMetadata         K = 0
	TextNote                K = 1
	RecommendRelay          K = 2
	FollowList              K = 3
	EncryptedDirectMessage  K = 4
	EventDeletion           K = 5
	Repost                  K = 6
	Reaction                K = 7
	BadgeAward              K = 8
	GenericRepost           K = 16
	ChannelCreation         K = 40
	ChannelMetadata         K = 41
	ChannelMessage          K = 42
	ChannelHideMessage      K = 43
	ChannelMuteUser         K = 44
	Seal                    K = 13
	PrivateDirectMessage    K = 14
	Reporting               K = 1984
	Label                   K = 1985
	ZapRequest              K = 9734
	Zap                     K = 9735
	MuteList                K = 10000
	PinList                 K = 10001
	RelayListMetadata       K = 10002
	BookmarkList            K = 10003
	InterestsList           K = 10015
	DMRelaysList            K = 10050
	JWTBinding              K = 13004
	ClientAuthentication    K = 22242
	CategorizedPeopleList   K = 30000
	CategorizedBookmarkList K = 30001
	RelaySets               K = 30002
	ProfileBadges           K = 30008
	BadgeDefinition         K = 30009
	LongFormContent         K = 30023
	DraftLongFormContent    K = 30024
	ApplicationSpecificData K = 30078
	HandlerRecommendation   K = 31989
	HandlerInformation      K = 31990

	// ReplaceableStart/End bound the range of generic replaceable kinds
	// (10000-19999) beyond ProfileMetadata and FollowList, which carry
	// their own legacy numbers below this range.
	ReplaceableStart K = 10000
	ReplaceableEnd   K = 20000

	EphemeralStart K = 20000
	EphemeralEnd   K = 30000

	ParameterizedReplaceableStart K = 30000
	ParameterizedReplaceableEnd   K = 40000
)

// IsEphemeral reports whether events of this kind must never be persisted.
func IsEphemeral(k uint16) bool {
	return k >= uint16(EphemeralStart) && k < uint16(EphemeralEnd)
}

// IsReplaceable reports whether only the newest event for (pubkey, kind)
// should be retained.
func IsReplaceable(k uint16) bool {
	return k == uint16(ProfileMetadata) || k == uint16(FollowList) ||
		(k >= uint16(ReplaceableStart) && k < uint16(ReplaceableEnd))
}

// IsParameterizedReplaceable reports whether only the newest event for
// (pubkey, kind, d-tag) should be retained.
func IsParameterizedReplaceable(k uint16) bool {
	return k >= uint16(ParameterizedReplaceableStart) &&
		k < uint16(ParameterizedReplaceableEnd)
}

// Privileged lists kinds whose content must only be visible to the event's
// author and its tagged participants.
var Privileged = []K{
	EncryptedDirectMessage,
	PrivateDirectMessage,
	Seal,
	JWTBinding,
	ApplicationSpecificData,
}

// IsPrivileged reports whether k requires participant-only visibility.
func IsPrivileged(k uint16) bool {
	for _, p := range Privileged {
		if p.Equal(k) {
			return true
		}
	}
	return false
}

// Directory lists kinds that must stay world-readable even on an
// auth-required relay, so users can discover each other.
var Directory = []K{
	ProfileMetadata,
	FollowList,
	EventDeletion,
	Reporting,
	RelayListMetadata,
	MuteList,
	DMRelaysList,
}

// IsDirectoryEvent reports whether k is exempt from auth gating.
func IsDirectoryEvent(k uint16) bool {
	for _, d := range Directory {
		if d.Equal(k) {
			return true
		}
	}
	return false
}

var mapMx sync.RWMutex
var names = map[uint16]string{
	uint16(ProfileMetadata):         "ProfileMetadata",
	uint16(TextNote):                "TextNote",
	uint16(RecommendRelay):          "RecommendRelay",
	uint16(FollowList):              "FollowList",
	uint16(EncryptedDirectMessage):  "EncryptedDirectMessage",
	uint16(EventDeletion):           "EventDeletion",
	uint16(Repost):                  "Repost",
	uint16(Reaction):                "Reaction",
	uint16(BadgeAward):              "BadgeAward",
	uint16(GenericRepost):           "GenericRepost",
	uint16(ChannelCreation):         "ChannelCreation",
	uint16(ChannelMetadata):         "ChannelMetadata",
	uint16(ChannelMessage):          "ChannelMessage",
	uint16(ChannelHideMessage):      "ChannelHideMessage",
	uint16(ChannelMuteUser):         "ChannelMuteUser",
	uint16(Seal):                    "Seal",
	uint16(PrivateDirectMessage):    "PrivateDirectMessage",
	uint16(Reporting):               "Reporting",
	uint16(Label):                   "Label",
	uint16(ZapRequest):              "ZapRequest",
	uint16(Zap):                     "Zap",
	uint16(MuteList):                "MuteList",
	uint16(PinList):                 "PinList",
	uint16(RelayListMetadata):       "RelayListMetadata",
	uint16(BookmarkList):            "BookmarkList",
	uint16(InterestsList):           "InterestsList",
	uint16(DMRelaysList):            "DMRelaysList",
	uint16(JWTBinding):              "JWTBinding",
	uint16(ClientAuthentication):    "ClientAuthentication",
	uint16(CategorizedPeopleList):   "CategorizedPeopleList",
	uint16(CategorizedBookmarkList): "CategorizedBookmarkList",
	uint16(RelaySets):               "RelaySets",
	uint16(ProfileBadges):           "ProfileBadges",
	uint16(BadgeDefinition):         "BadgeDefinition",
	uint16(LongFormContent):         "LongFormContent",
	uint16(DraftLongFormContent):    "DraftLongFormContent",
	uint16(ApplicationSpecificData): "ApplicationSpecificData",
	uint16(HandlerRecommendation):   "HandlerRecommendation",
	uint16(HandlerInformation):      "HandlerInformation",
}

// GetString returns the human-readable name of a raw kind number, or "" if
// it isn't one this relay has a name for.
func GetString(k uint16) string {
	mapMx.RLock()
	defer mapMx.RUnlock()
	return names[k]
}
