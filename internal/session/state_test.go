package session

import "testing"

func TestNext_TransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from State
		ev   event
		want State
		ok   bool
	}{
		{"connecting dial ok", StateConnecting, eventDialOK, StateConnected, true},
		{"connecting dial failed", StateConnecting, eventDialFailed, StateError, true},
		{"connecting local close", StateConnecting, eventLocalClose, StateClosed, true},
		{"connected read failed", StateConnected, eventReadFailed, StateError, true},
		{"connected peer closed", StateConnected, eventPeerClosed, StateClosed, true},
		{"connected local close", StateConnected, eventLocalClose, StateClosed, true},
		{"connecting read failed is illegal", StateConnecting, eventReadFailed, StateConnecting, false},
		{"connecting peer closed is illegal", StateConnecting, eventPeerClosed, StateConnecting, false},
		{"connected dial ok is illegal", StateConnected, eventDialOK, StateConnected, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := next(tc.from, tc.ev)
			if got != tc.want || ok != tc.ok {
				t.Errorf("next(%v, %d) = (%v, %t), want (%v, %t)",
					tc.from, tc.ev, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestNext_TerminalStatesAbsorbEverything(t *testing.T) {
	t.Parallel()

	events := []event{eventDialOK, eventDialFailed, eventReadFailed, eventPeerClosed, eventLocalClose}
	for _, terminal := range []State{StateClosed, StateError} {
		for _, ev := range events {
			if got, ok := next(terminal, ev); ok || got != terminal {
				t.Errorf("next(%v, %d) = (%v, %t), want (%v, false)",
					terminal, ev, got, ok, terminal)
			}
		}
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateClosed, "closed"},
		{StateError, "error"},
		{State(99), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
