package xeno

import "fmt"

// DialogPhase is the conversational state of a session.
type DialogPhase int

// Dialog phases.
const (
	DialogUninitialized DialogPhase = iota
	DialogConnected
	DialogPendingSetup
	DialogPendingAuth
	DialogEstablished
	DialogPendingHangup
	DialogHungup
	DialogDisconnected
)

var dialogNames = [...]string{
	DialogUninitialized: "Uninitialized",
	DialogConnected:     "Connected",
	DialogPendingSetup:  "PendingSetup",
	DialogPendingAuth:   "PendingAuth",
	DialogEstablished:   "Established",
	DialogPendingHangup: "PendingHangup",
	DialogHungup:        "Hungup",
	DialogDisconnected:  "Disconnected",
}

// String implements fmt.Stringer.
func (p DialogPhase) String() string {
	if p >= 0 && int(p) < len(dialogNames) {
		return dialogNames[p]
	}
	return fmt.Sprintf("DialogPhase(%d)", int(p))
}

// Closed reports whether the session is over.
func (p DialogPhase) Closed() bool {
	return p == DialogHungup || p == DialogDisconnected
}

// CanTransit reports whether the dialog may move from p to next.
// Disconnected is reachable from anywhere; Hungup from any open phase.
func (p DialogPhase) CanTransit(next DialogPhase) bool {
	switch {
	case next == DialogDisconnected:
		return p != DialogDisconnected
	case p.Closed():
		return false
	case next == DialogHungup:
		return true
	}
	return next == p+1
}

// SyncPhase tracks whether frame boundaries can be trusted. It is
// orthogonal to the dialog phase.
type SyncPhase int

// Sync phases.
const (
	Synced SyncPhase = iota
	// InitiatorDesync: this side lost alignment and sends markers.
	InitiatorDesync
	// InitiatedDesync: the peer asked for a resync with a marker.
	InitiatedDesync
	// PendingExit: a marker was seen; waiting for a clean frame or for the
	// peer's markers to stop.
	PendingExit
	// Casting is reserved for one-way broadcast links which never
	// negotiate sync. Sessions don't enter it.
	Casting
)

var syncNames = [...]string{
	Synced:          "Synced",
	InitiatorDesync: "InitiatorDesync",
	InitiatedDesync: "InitiatedDesync",
	PendingExit:     "PendingExit",
	Casting:         "Casting",
}

// String implements fmt.Stringer.
func (p SyncPhase) String() string {
	if p >= 0 && int(p) < len(syncNames) {
		return syncNames[p]
	}
	return fmt.Sprintf("SyncPhase(%d)", int(p))
}

// Desynced reports whether received bytes must be scanned for markers
// instead of being decoded.
func (p SyncPhase) Desynced() bool {
	return p == InitiatorDesync || p == InitiatedDesync
}

// CanTransit reports whether the sync phase may move from p to next.
func (p SyncPhase) CanTransit(next SyncPhase) bool {
	switch p {
	case Synced:
		return next.Desynced()
	case InitiatorDesync, InitiatedDesync:
		return next == PendingExit || (next.Desynced() && next != p)
	case PendingExit:
		return next == Synced || next == InitiatorDesync
	}
	return false
}

// SessionState is the pair of orthogonal session phases.
type SessionState struct {
	Dialog DialogPhase
	Sync   SyncPhase
}

// String implements fmt.Stringer.
func (s SessionState) String() string {
	return s.Dialog.String() + "/" + s.Sync.String()
}
