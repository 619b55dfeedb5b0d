// Package ws is the realtime transport: a websocket hub with named
// namespaces and rooms, per-connection event dispatch, and the connection
// gate that authenticates upgrades.
package ws

import "encoding/json"

// Namespaces carried by the transport. Each maps to one websocket endpoint.
const (
	NamespaceMain    = "main"
	NamespaceChat    = "chat"
	NamespaceChannel = "channel"
	NamespaceServer  = "server"
	NamespaceCall    = "call"
)

// Event is the wire frame: {"event": name, "data": payload}.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// encodeEvent marshals an outbound frame. A payload that fails to marshal is
// a programming error; the frame is dropped and the caller logs.
func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: event, Data: data})
}
