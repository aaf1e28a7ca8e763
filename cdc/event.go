package cdc

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the messages on the CDC stream.
type EventKind string

const (
	// EventInsert signals new rows in a collection.
	EventInsert EventKind = "insert"
	// EventUpdate signals changed rows in a collection.
	EventUpdate EventKind = "update"
	// EventListenerAdd signals a listener registration from another
	// process.
	EventListenerAdd EventKind = "listener/add"
	// EventListenerRemove signals a listener teardown from another
	// process.
	EventListenerRemove EventKind = "listener/remove"
)

// Event is one message on the CDC stream.
type Event struct {
	Kind       EventKind `json:"kind"`
	Collection string    `json:"collection,omitempty"`
	IDs        []string  `json:"ids,omitempty"`

	// Listener carries the listener identifier for the listener
	// lifecycle kinds.
	Listener string `json:"listener,omitempty"`
}

// EncodeEvent serializes an event for a transport.
func EncodeEvent(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("cdc: encoding event: %w", err)
	}
	return body, nil
}

// DecodeEvent parses a transport message back into an event.
func DecodeEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("cdc: decoding event: %w", err)
	}
	switch ev.Kind {
	case EventInsert, EventUpdate, EventListenerAdd, EventListenerRemove:
		return ev, nil
	default:
		return Event{}, fmt.Errorf("cdc: unknown event kind %q", ev.Kind)
	}
}
