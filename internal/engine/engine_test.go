package engine

import (
	"errors"
	"testing"
)

// threeSeats builds the canonical A, B, C table with everyone connected and
// holding the starting three chips. Seating order is A(0), B(1), C(2).
func threeSeats() State {
	return State{
		Seats: []Seat{
			{PlayerID: "pa", Name: "A", Chips: 3, Connected: true},
			{PlayerID: "pb", Name: "B", Chips: 3, Connected: true},
			{PlayerID: "pc", Name: "C", Chips: 3, Connected: true},
		},
		Cursor: 0,
	}
}

func TestRoll_LeftCenterRight(t *testing.T) {
	s := threeSeats()

	events, ns, err := Apply(s, Command{Type: CmdRoll, PlayerID: "pa", Faces: []Face{FaceLeft, FaceCenter, FaceRight}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Left goes to the predecessor (C), Right to the successor (B).
	if got := ns.Seats[0].Chips; got != 0 {
		t.Fatalf("A chips: want 0, got %d", got)
	}
	if got := ns.Seats[1].Chips; got != 4 {
		t.Fatalf("B chips: want 4, got %d", got)
	}
	if got := ns.Seats[2].Chips; got != 4 {
		t.Fatalf("C chips: want 4, got %d", got)
	}
	if ns.Pot != 1 {
		t.Fatalf("pot: want 1, got %d", ns.Pot)
	}
	if got := TotalChips(ns); got != 9 {
		t.Fatalf("total chips: want 9, got %d", got)
	}
	if !ContainsEvent(events, EvtTurnAdvanced) {
		t.Fatalf("expected TurnAdvanced, got %+v", events)
	}
	if ns.Cursor != 1 {
		t.Fatalf("cursor: want 1 (B), got %d", ns.Cursor)
	}
}

func TestRoll_CursorSkipsEliminatedSeat(t *testing.T) {
	s := threeSeats()

	// Empty A's seat, then walk the cursor around: it must never land on A.
	_, s, err := Apply(s, Command{Type: CmdRoll, PlayerID: "pa", Faces: []Face{FaceLeft, FaceCenter, FaceRight}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_, s, err = Apply(s, Command{Type: CmdRoll, PlayerID: "pb", Faces: []Face{FaceBlank, FaceBlank, FaceBlank}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Cursor != 2 {
		t.Fatalf("cursor after B: want 2 (C), got %d", s.Cursor)
	}

	_, s, err = Apply(s, Command{Type: CmdRoll, PlayerID: "pc", Faces: []Face{FaceBlank, FaceBlank, FaceBlank}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Cursor != 1 {
		t.Fatalf("cursor after C: want 1 (B, skipping eliminated A), got %d", s.Cursor)
	}
}

func TestRoll_OutOfTurnHasNoSideEffect(t *testing.T) {
	s := threeSeats()

	_, ns, err := Apply(s, Command{Type: CmdRoll, PlayerID: "pb", Faces: []Face{FaceCenter, FaceCenter, FaceCenter}})
	if !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("want ErrOutOfTurn, got %v", err)
	}
	if ns.Seats[1].Chips != 3 || ns.Pot != 0 {
		t.Fatalf("state mutated on rejected roll: %+v", ns)
	}
}

func TestRoll_UnknownPlayer(t *testing.T) {
	s := threeSeats()

	_, _, err := Apply(s, Command{Type: CmdRoll, PlayerID: "nobody", Faces: []Face{FaceBlank, FaceBlank, FaceBlank}})
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("want ErrPlayerNotFound, got %v", err)
	}
}

func TestRoll_RejectedWhileWaiting(t *testing.T) {
	cases := []struct {
		name  string
		setup func() State
	}{
		{
			name: "single seat",
			setup: func() State {
				return State{Seats: []Seat{{PlayerID: "pa", Name: "A", Chips: 3, Connected: true}}}
			},
		},
		{
			name: "second seat disconnected",
			setup: func() State {
				s := threeSeats()
				s.Seats = s.Seats[:2]
				s.Seats[1].Connected = false
				return s
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Apply(tc.setup(), Command{Type: CmdRoll, PlayerID: "pa", Faces: []Face{FaceBlank, FaceBlank, FaceBlank}})
			if !errors.Is(err, ErrInvalidState) {
				t.Fatalf("want ErrInvalidState, got %v", err)
			}
		})
	}
}

func TestRoll_MalformedDieCount(t *testing.T) {
	s := threeSeats()
	s.Seats[0].Chips = 2 // two chips roll exactly two dice

	_, _, err := Apply(s, Command{Type: CmdRoll, PlayerID: "pa", Faces: []Face{FaceBlank, FaceBlank, FaceBlank}})
	if !errors.Is(err, ErrMalformedRoll) {
		t.Fatalf("want ErrMalformedRoll, got %v", err)
	}
}

func TestRoll_ZeroChipTurnIsNoOp(t *testing.T) {
	s := threeSeats()
	s.Seats[0].Chips = 0
	s.Seats[1].Chips = 5
	s.Seats[2].Chips = 4

	events, ns, err := Apply(s, Command{Type: CmdRoll, PlayerID: "pa", Faces: nil})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if TotalChips(ns) != TotalChips(s) {
		t.Fatalf("no-op turn moved chips")
	}
	if !ContainsEvent(events, EvtTurnAdvanced) || ns.Cursor != 1 {
		t.Fatalf("no-op turn must still advance, cursor=%d events=%+v", ns.Cursor, events)
	}
}

func TestRoll_WinnerDeclaredAndSessionTerminal(t *testing.T) {
	s := State{
		Seats: []Seat{
			{PlayerID: "pa", Name: "A", Chips: 1, Connected: true},
			{PlayerID: "pb", Name: "B", Chips: 4, Connected: true},
		},
		Cursor: 0,
		Pot:    1,
	}

	events, ns, err := Apply(s, Command{Type: CmdRoll, PlayerID: "pa", Faces: []Face{FaceCenter}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ns.WinnerID != "pb" {
		t.Fatalf("winner: want pb, got %q", ns.WinnerID)
	}
	if !ContainsEvent(events, EvtGameFinished) {
		t.Fatalf("expected GameFinished, got %+v", events)
	}
	if DerivePhase(ns) != PhaseFinished {
		t.Fatalf("phase: want finished, got %v", DerivePhase(ns))
	}

	// Terminal sessions reject every further roll, winner included.
	for _, id := range []string{"pa", "pb"} {
		if _, _, err := Apply(ns, Command{Type: CmdRoll, PlayerID: id, Faces: []Face{FaceBlank}}); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("roll by %s after finish: want ErrInvalidState, got %v", id, err)
		}
	}
}

func TestRoll_ZeroHoldersIsErrorNotWinner(t *testing.T) {
	// Not reachable through legal play; guards against malformed state.
	s := State{
		Seats: []Seat{
			{PlayerID: "pa", Name: "A", Chips: 1, Connected: true},
			{PlayerID: "pb", Name: "B", Chips: 0, Connected: true},
		},
		Cursor: 0,
	}

	_, ns, err := Apply(s, Command{Type: CmdRoll, PlayerID: "pa", Faces: []Face{FaceCenter}})
	if !errors.Is(err, ErrNoChipsInPlay) {
		t.Fatalf("want ErrNoChipsInPlay, got %v", err)
	}
	if ns.WinnerID != "" {
		t.Fatalf("no winner may be declared: %+v", ns)
	}
}

func TestJoin_IdempotentByName(t *testing.T) {
	var s State
	var err error

	_, s, err = Apply(s, Command{Type: CmdJoin, PlayerID: "pa", Name: "A", Chips: InitialChips})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	s.Seats[0].Chips = 1 // simulate play having happened

	events, s, err := Apply(s, Command{Type: CmdJoin, PlayerID: "other-id", Name: "A", Chips: InitialChips})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(s.Seats) != 1 {
		t.Fatalf("re-join created a duplicate seat: %+v", s.Seats)
	}
	if s.Seats[0].Chips != 1 {
		t.Fatalf("re-join reset chips: want 1, got %d", s.Seats[0].Chips)
	}
	if s.Seats[0].PlayerID != "pa" {
		t.Fatalf("re-join replaced identity: %+v", s.Seats[0])
	}
	if !ContainsEvent(events, EvtPlayerRejoined) {
		t.Fatalf("expected PlayerRejoined, got %+v", events)
	}
}

func TestLeave_KeepsChipsAndSeat(t *testing.T) {
	s := threeSeats()

	events, ns, err := Apply(s, Command{Type: CmdLeave, Name: "B"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ns.Seats[1].Connected {
		t.Fatalf("seat still connected after leave")
	}
	if ns.Seats[1].Chips != 3 {
		t.Fatalf("leave forfeited chips: %+v", ns.Seats[1])
	}
	if len(ns.Seats) != 3 {
		t.Fatalf("leave removed the seat: %+v", ns.Seats)
	}
	if !ContainsEvent(events, EvtPlayerLeft) {
		t.Fatalf("expected PlayerLeft, got %+v", events)
	}

	_, _, err = Apply(ns, Command{Type: CmdLeave, Name: "nobody"})
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("want ErrPlayerNotFound, got %v", err)
	}
}

// Chip conservation over a long random game: sum(chips)+pot never moves from
// 3 * seat count, and the cursor only ever rests on seats holding chips.
func TestRoll_ChipConservationUnderRandomPlay(t *testing.T) {
	s := threeSeats()
	s.Seats = append(s.Seats, Seat{PlayerID: "pd", Name: "D", Chips: 3, Connected: true})
	want := TotalChips(s)

	roller := NewRoller(&RollerConfig{Seed: 42})
	for i := 0; i < 500; i++ {
		if DerivePhase(s) == PhaseFinished {
			break
		}
		active := s.Seats[s.Cursor]
		if active.Chips == 0 {
			t.Fatalf("turn %d: cursor parked on eliminated seat %s", i, active.Name)
		}

		faces := roller.Roll(DiceCount(active.Chips))
		_, ns, err := Apply(s, Command{Type: CmdRoll, PlayerID: active.PlayerID, Faces: faces})
		if err != nil {
			t.Fatalf("turn %d: unexpected err: %v", i, err)
		}
		if got := TotalChips(ns); got != want {
			t.Fatalf("turn %d: conservation broken: want %d, got %d", i, want, got)
		}
		s = ns
	}
}

func TestRoller_FaceLengthAndDeterminism(t *testing.T) {
	a := NewRoller(&RollerConfig{Seed: 7})
	b := NewRoller(&RollerConfig{Seed: 7})

	fa := a.Roll(3)
	fb := b.Roll(3)
	if len(fa) != 3 || len(fb) != 3 {
		t.Fatalf("want 3 faces, got %d and %d", len(fa), len(fb))
	}
	for i := range fa {
		if fa[i] != fb[i] {
			t.Fatalf("same seed diverged: %v vs %v", fa, fb)
		}
	}
}
