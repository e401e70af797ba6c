package domain

// CallStatus is the lifecycle state of one outbound store call.
type CallStatus string

const (
	CallQueued       CallStatus = "queued"
	CallDialing      CallStatus = "dialing"
	CallInProgress   CallStatus = "in_progress"
	CallCompleted    CallStatus = "completed"
	CallFailed       CallStatus = "failed"
	CallAnalyzed     CallStatus = "analyzed"
	CallUnanalyzable CallStatus = "unanalyzable"
)

var callOrder = map[CallStatus]int{
	CallQueued:     0,
	CallDialing:    1,
	CallInProgress: 2,
	CallCompleted:  3,
	// failed is terminal and reachable from any live state
	CallAnalyzed:     4,
	CallUnanalyzable: 4,
}

// IsTerminal reports whether the call status accepts no further transitions.
// completed is not terminal: it still awaits transcript analysis.
func (s CallStatus) IsTerminal() bool {
	return s == CallFailed || s == CallAnalyzed || s == CallUnanalyzable
}

// IsSettled reports whether the call no longer counts as pending for ticket
// completion. completed counts as settled so a missing transcript event
// cannot hold a ticket open forever; the watchdog covers the rest.
func (s CallStatus) IsSettled() bool {
	return s == CallCompleted || s.IsTerminal()
}

// PendingCallStatuses lists the statuses that hold a ticket's completion check
// open. completed is excluded per IsSettled.
func PendingCallStatuses() []string {
	return []string{string(CallQueued), string(CallDialing), string(CallInProgress)}
}

// PriorStates returns the set of statuses a row may hold for a transition to s
// to be applied. Used as the `status = ANY($n)` guard in conditional updates,
// which makes webhook replays and out-of-order delivery no-ops.
func (s CallStatus) PriorStates() []string {
	switch s {
	case CallDialing:
		return []string{string(CallQueued)}
	case CallInProgress:
		return []string{string(CallQueued), string(CallDialing)}
	case CallCompleted:
		return []string{string(CallQueued), string(CallDialing), string(CallInProgress)}
	case CallFailed:
		return []string{string(CallQueued), string(CallDialing), string(CallInProgress), string(CallCompleted)}
	case CallAnalyzed, CallUnanalyzable:
		return []string{string(CallCompleted)}
	default:
		return nil
	}
}

// MatchType classifies how well a store's stocked product matches the request.
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchAlternative MatchType = "alternative"
	MatchNone        MatchType = "none"
)

// matchRank orders match types for option ranking; lower ranks first.
var matchRank = map[MatchType]int{
	MatchExact:       0,
	MatchAlternative: 1,
	MatchNone:        2,
}

// Rank returns the ranking tier for the match type. Unknown values rank last.
func (m MatchType) Rank() int {
	if r, ok := matchRank[m]; ok {
		return r
	}
	return len(matchRank)
}
