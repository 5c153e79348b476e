package session

import (
	"nearbybot/pkg/model"
)

// Kind tags the active conversation flow for a session. A session holds
// exactly one Kind at a time; setting a new state replaces the previous one,
// so a stale flow can never hijack a later unrelated message.
type Kind int

// Conversation flow states.
const (
	Idle Kind = iota
	// SearchCentreName: the next free-text message is a centre-name query.
	SearchCentreName
	// SearchKeyword: the next free-text message is an activity keyword query.
	SearchKeyword
	// AwaitingPostalForCategory: waiting for a postal code (or live location)
	// to rank centres of State.Category.
	AwaitingPostalForCategory
	// ActivitiesAwaitingPostal: waiting for a postal code (or live location)
	// to list nearby centres for activity browsing.
	ActivitiesAwaitingPostal
	// ActivitiesCentreList: nearby centres were listed; the selection itself
	// is stateless, each list button carries its centre's id.
	ActivitiesCentreList
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case SearchCentreName:
		return "search_centre_name"
	case SearchKeyword:
		return "search_keyword"
	case AwaitingPostalForCategory:
		return "awaiting_postal_for_category"
	case ActivitiesAwaitingPostal:
		return "activities_awaiting_postal"
	case ActivitiesCentreList:
		return "activities_centre_list"
	default:
		return "unknown"
	}
}

// State is the tagged variant of per-session conversation state. Only the
// fields relevant to the Kind are set.
type State struct {
	Kind     Kind
	Category model.Category // AwaitingPostalForCategory
}
