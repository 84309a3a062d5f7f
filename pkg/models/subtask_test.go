package models

import "testing"

func TestSubtaskStatusTerminal(t *testing.T) {
	tests := []struct {
		status   SubtaskStatus
		terminal bool
	}{
		{SubtaskPending, false},
		{SubtaskRunning, false},
		{SubtaskSuccess, true},
		{SubtaskFailed, true},
		{SubtaskSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if !tt.status.Valid() {
				t.Errorf("expected %q to be valid", tt.status)
			}
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}

	if SubtaskStatus("blocked").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestEntrySourceRank(t *testing.T) {
	if !(SourceProject.Rank() > SourceUser.Rank() && SourceUser.Rank() > SourceBuiltin.Rank()) {
		t.Errorf("unexpected rank order: project=%d user=%d builtin=%d",
			SourceProject.Rank(), SourceUser.Rank(), SourceBuiltin.Rank())
	}
	if EntrySource("remote").Valid() {
		t.Error("expected unknown source to be invalid")
	}
}
