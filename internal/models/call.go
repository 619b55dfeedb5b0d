package models

import "github.com/google/uuid"

// CallRecord is one endpoint's half of an active or ringing 1:1 call edge,
// stored at calls/{userId}. An edge is always two mirrored records, one per
// endpoint, so either side can resolve its peer in a single lookup.
type CallRecord struct {
	PeerID    uuid.UUID `json:"peerId"`
	Timestamp int64     `json:"timestamp"` // Unix ms
}
