package gomel

// Syncer disseminates units and justifications among committee members.
type Syncer interface {
	// RequestFetch sends a request to the given committee member for units with given hashes.
	RequestFetch(uint16, []*Hash)
	// RequestTip asks all committee members for their maximal units at or above the given round.
	RequestTip(int)
	// Multicast the unit to all committee members.
	Multicast(Unit)
}
