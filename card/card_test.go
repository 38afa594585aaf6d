package card

import "testing"

func TestCapacity_SumsToDeckSize(t *testing.T) {
	total := 0
	for _, l := range Labels() {
		total += l.Capacity()
	}
	if total != DeckSize {
		t.Fatalf("capacities sum to %d, want %d", total, DeckSize)
	}
}

func TestCapacity_JokerIsTwo(t *testing.T) {
	if got := LabelJoker.Capacity(); got != 2 {
		t.Fatalf("joker capacity = %d, want 2", got)
	}
	if got := LabelSeven.Capacity(); got != 4 {
		t.Fatalf("seven capacity = %d, want 4", got)
	}
	if got := LabelInvalid.Capacity(); got != 0 {
		t.Fatalf("invalid capacity = %d, want 0", got)
	}
}

func TestParseLabel_RoundTrip(t *testing.T) {
	for _, l := range Labels() {
		parsed, err := ParseLabel(l.String())
		if err != nil {
			t.Fatalf("ParseLabel(%q) err: %v", l.String(), err)
		}
		if parsed != l {
			t.Fatalf("ParseLabel(%q) = %v, want %v", l.String(), parsed, l)
		}
	}
	if _, err := ParseLabel("15"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestFullCount_MatchesCapacities(t *testing.T) {
	full := FullCount()
	if len(full) != 14 {
		t.Fatalf("full count has %d entries, want 14", len(full))
	}
	if Total(full) != DeckSize {
		t.Fatalf("full count totals %d, want %d", Total(full), DeckSize)
	}
	empty := EmptyCount()
	if Total(empty) != 0 {
		t.Fatalf("empty count totals %d, want 0", Total(empty))
	}
}
