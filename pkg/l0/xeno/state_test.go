package xeno

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDialogCanTransit(t *testing.T) {
	testCases := []struct {
		from, to DialogPhase
		expect   bool
	}{
		{DialogUninitialized, DialogConnected, true},
		{DialogConnected, DialogPendingSetup, true},
		{DialogPendingSetup, DialogPendingAuth, true},
		{DialogPendingAuth, DialogEstablished, true},
		{DialogEstablished, DialogPendingHangup, true},
		{DialogPendingHangup, DialogHungup, true},
		{DialogConnected, DialogEstablished, false},
		{DialogEstablished, DialogConnected, false},
		{DialogPendingSetup, DialogHungup, true},
		{DialogUninitialized, DialogDisconnected, true},
		{DialogHungup, DialogDisconnected, true},
		{DialogDisconnected, DialogDisconnected, false},
		{DialogHungup, DialogHungup, false},
		{DialogDisconnected, DialogConnected, false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expect, tc.from.CanTransit(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSyncCanTransit(t *testing.T) {
	testCases := []struct {
		from, to SyncPhase
		expect   bool
	}{
		{Synced, InitiatorDesync, true},
		{Synced, InitiatedDesync, true},
		{Synced, PendingExit, false},
		{InitiatorDesync, PendingExit, true},
		{InitiatedDesync, PendingExit, true},
		{InitiatedDesync, InitiatorDesync, true},
		{InitiatorDesync, Synced, false},
		{PendingExit, Synced, true},
		{PendingExit, InitiatorDesync, true},
		{Casting, Synced, false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expect, tc.from.CanTransit(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSessionStateString(t *testing.T) {
	require.Equal(t, "Established/PendingExit", SessionState{Dialog: DialogEstablished, Sync: PendingExit}.String())
	require.Equal(t, "DialogPhase(42)", DialogPhase(42).String())
	require.True(t, DialogHungup.Closed())
	require.False(t, DialogPendingHangup.Closed())
	require.True(t, InitiatedDesync.Desynced())
	require.False(t, PendingExit.Desynced())
}
