package engine

import "slices"

func clone(s State) State {
	ns := s
	ns.Seats = slices.Clone(s.Seats)
	return ns
}

// DiceCount is the number of dice a seat rolls this turn: one per chip held,
// capped at three. A seat at zero chips rolls nothing.
func DiceCount(chips int) int {
	return min(chips, MaxDice)
}

// DerivePhase reports where the session is in its lifecycle. A session with
// a winner is finished for good; one with fewer than two connected seats
// cannot start or continue.
func DerivePhase(s State) Phase {
	if s.WinnerID != "" {
		return PhaseFinished
	}
	if len(s.Seats) < 2 || connectedCount(s) < 2 {
		return PhaseWaiting
	}
	return PhaseInProgress
}

// TotalChips is the conserved quantity: chips on seats plus the pot.
func TotalChips(s State) int {
	total := s.Pot
	for _, seat := range s.Seats {
		total += seat.Chips
	}
	return total
}

// SeatByID returns the seat owned by the given player, if any.
func SeatByID(s State, id string) (Seat, bool) {
	if i := seatIndexByID(s, id); i >= 0 {
		return s.Seats[i], true
	}
	return Seat{}, false
}

// ActiveSeat is the seat at the cursor.
func ActiveSeat(s State) (Seat, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Seats) {
		return Seat{}, false
	}
	return s.Seats[s.Cursor], true
}

func connectedCount(s State) int {
	n := 0
	for _, seat := range s.Seats {
		if seat.Connected {
			n++
		}
	}
	return n
}

// ContainsEvent reports whether any event in the batch has the given type.
func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
