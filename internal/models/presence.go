package models

// PresenceRecord marks a user online in the keyed state store.
// Existence of the record is the online signal: it is deleted on full
// disconnect, never flagged false.
type PresenceRecord struct {
	Online   bool  `json:"online"`
	LastSeen int64 `json:"lastSeen"` // Unix ms
}
