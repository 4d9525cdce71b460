package dialog

import "testing"

func TestLedgerAppendsInOrder(t *testing.T) {
	l := NewLedger()
	l.Append(RoleUser, "first")
	l.Append(RoleAssistant, "second")
	l.Append(RoleUser, "third")

	turns := l.Turns()
	if len(turns) != 3 {
		t.Fatalf("len(Turns()) = %d, want 3", len(turns))
	}
	if turns[0].Text != "first" || turns[2].Text != "third" {
		t.Fatalf("turns out of order: %+v", turns)
	}
}

func TestLedgerTurnsReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.Append(RoleUser, "original")

	turns := l.Turns()
	turns[0].Text = "mutated"

	if got := l.Turns()[0].Text; got != "original" {
		t.Fatalf("ledger mutated through returned slice: %q", got)
	}
}
