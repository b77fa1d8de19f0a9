// Package link manages the BLE session lifecycle: gated idle while the
// sensor bank is off, bounded advertising while it is on, and a single
// served connection that streams hits to the peer as notifications.
package link

import (
	"context"
	"fmt"
)

// Reason is the link-layer disconnect reason, using HCI error codes where
// the controller reports one.
type Reason uint8

const (
	ReasonUnknown           Reason = 0x00
	ReasonConnectionTimeout Reason = 0x08
	ReasonRemoteTerminated  Reason = 0x13
	ReasonLocalTerminated   Reason = 0x16
)

func (r Reason) String() string {
	switch r {
	case ReasonConnectionTimeout:
		return "connection timeout"
	case ReasonRemoteTerminated:
		return "terminated by peer"
	case ReasonLocalTerminated:
		return "terminated locally"
	case ReasonUnknown:
		return "unknown"
	}
	return fmt.Sprintf("hci(0x%02x)", uint8(r))
}

// EventKind tags a connection lifecycle event.
type EventKind uint8

const (
	EventConnected EventKind = iota
	EventDisconnected
)

// Event is one connection lifecycle event from the radio.
type Event struct {
	Kind   EventKind
	Reason Reason
}

// Radio is the link-layer surface the manager drives. The advertising
// payload is fixed at radio construction; the manager only starts and
// stops it around connection attempts.
type Radio interface {
	// Advertise starts connectable advertising with the fixed payload.
	Advertise() error
	// StopAdvertising stops an active advertisement.
	StopAdvertising() error
	// Events delivers connection lifecycle events in order.
	Events() <-chan Event
	// Notify pushes one packet to the subscribed peer. An error means
	// the notification could not be delivered.
	Notify(p []byte) error
	// Run drives the controller until ctx is done. A non-nil return
	// means the radio is unusable and the process should stop.
	Run(ctx context.Context) error
}
