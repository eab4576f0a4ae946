package engine

import (
	"errors"
	"slices"
)

var ErrOutOfTurn = errors.New("roll out of turn")
var ErrInvalidState = errors.New("session is not accepting rolls")
var ErrPlayerNotFound = errors.New("player not seated in session")
var ErrMalformedRoll = errors.New("die count does not match chip count")
var ErrNoChipsInPlay = errors.New("no chips left in play")
var ErrUnsupportedCommand = errors.New("unsupported command")

// InitialChips is dealt to every brand-new seat.
const InitialChips = 3

// MaxDice caps a turn at three dice regardless of chips held.
const MaxDice = 3

type Face string

const (
	FaceLeft   Face = "L"
	FaceRight  Face = "R"
	FaceCenter Face = "C"
	FaceBlank  Face = "D"
)

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
)

// Seat is one position in the seating order. A seat at zero chips stays in
// the order (it can still receive chips from neighbors); a disconnected seat
// keeps its chips and is reclaimed by re-joining under the same name.
type Seat struct {
	PlayerID  string
	Name      string
	Chips     int
	Connected bool
	IsAI      bool
}

// State is the authoritative session state. It is a value: Apply never
// mutates its input, so a failed command leaves the caller's copy untouched.
type State struct {
	Seats    []Seat
	Cursor   int
	Pot      int
	WinnerID string
	Rolls    int
}

type CommandType string

const (
	CmdJoin  CommandType = "Join"
	CmdLeave CommandType = "Leave"
	CmdRoll  CommandType = "Roll"
)

// Command drives the state machine. Faces on CmdRoll are sampled by the
// caller (server-side, never from a client) and must match the seat's die
// count. Chips on CmdJoin is the hydrated chip count for the seat; new
// players get InitialChips.
type Command struct {
	Type     CommandType
	PlayerID string
	Name     string
	Chips    int
	IsAI     bool
	Faces    []Face
}

type EventType string

const (
	EvtPlayerJoined   EventType = "PlayerJoined"
	EvtPlayerRejoined EventType = "PlayerRejoined"
	EvtPlayerLeft     EventType = "PlayerLeft"
	EvtRollResolved   EventType = "RollResolved"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtGameFinished   EventType = "GameFinished"
)

type Event struct {
	Type     EventType
	PlayerID string
	Name     string
	Faces    []Face
}

// Apply resolves one command against the state and returns the events it
// produced plus the successor state. On error the returned state is the
// input state and no event is emitted.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdRoll:
		return applyRoll(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// applyJoin is idempotent by seat name: a returning player reconnects the
// existing seat with its chip count intact instead of getting a fresh one.
func applyJoin(s State, cmd Command) ([]Event, State, error) {
	ns := clone(s)
	if i := seatIndexByName(ns, cmd.Name); i >= 0 {
		ns.Seats[i].Connected = true
		seat := ns.Seats[i]
		return []Event{{Type: EvtPlayerRejoined, PlayerID: seat.PlayerID, Name: seat.Name}}, ns, nil
	}

	seat := Seat{
		PlayerID:  cmd.PlayerID,
		Name:      cmd.Name,
		Chips:     cmd.Chips,
		Connected: true,
		IsAI:      cmd.IsAI,
	}
	ns.Seats = append(ns.Seats, seat)
	if len(ns.Seats) == 1 {
		ns.Cursor = 0
	}
	return []Event{{Type: EvtPlayerJoined, PlayerID: seat.PlayerID, Name: seat.Name}}, ns, nil
}

// applyLeave marks the seat disconnected. Chips stay with the seat and the
// seat stays in the rotation; a pending turn waits for the player to return.
func applyLeave(s State, cmd Command) ([]Event, State, error) {
	ns := clone(s)
	i := seatIndexByName(ns, cmd.Name)
	if i < 0 {
		i = seatIndexByID(ns, cmd.PlayerID)
	}
	if i < 0 {
		return nil, s, ErrPlayerNotFound
	}
	ns.Seats[i].Connected = false
	seat := ns.Seats[i]
	return []Event{{Type: EvtPlayerLeft, PlayerID: seat.PlayerID, Name: seat.Name}}, ns, nil
}

func applyRoll(s State, cmd Command) ([]Event, State, error) {
	if DerivePhase(s) != PhaseInProgress {
		return nil, s, ErrInvalidState
	}

	active := s.Seats[s.Cursor]
	if active.PlayerID != cmd.PlayerID {
		if seatIndexByID(s, cmd.PlayerID) < 0 {
			return nil, s, ErrPlayerNotFound
		}
		return nil, s, ErrOutOfTurn
	}

	// Die count was fixed by the chips held before the roll; every cast die
	// resolves even if the roller hits zero chips mid-sequence.
	if len(cmd.Faces) != DiceCount(active.Chips) {
		return nil, s, ErrMalformedRoll
	}

	ns := clone(s)
	i := ns.Cursor
	n := len(ns.Seats)
	for _, f := range cmd.Faces {
		switch f {
		case FaceLeft:
			ns.Seats[i].Chips--
			ns.Seats[(i-1+n)%n].Chips++
		case FaceRight:
			ns.Seats[i].Chips--
			ns.Seats[(i+1)%n].Chips++
		case FaceCenter:
			ns.Seats[i].Chips--
			ns.Pot++
		case FaceBlank:
			// no effect
		default:
			return nil, s, ErrMalformedRoll
		}
	}
	ns.Rolls++

	events := []Event{{Type: EvtRollResolved, PlayerID: active.PlayerID, Name: active.Name, Faces: cmd.Faces}}

	holders := chipHolders(ns)
	switch len(holders) {
	case 0:
		// Unreachable through legal rolls: the win check below fires the
		// moment a single holder remains.
		return nil, s, ErrNoChipsInPlay
	case 1:
		w := ns.Seats[holders[0]]
		ns.WinnerID = w.PlayerID
		events = append(events, Event{Type: EvtGameFinished, PlayerID: w.PlayerID, Name: w.Name})
	default:
		ns.Cursor = nextSeat(ns, i)
		nxt := ns.Seats[ns.Cursor]
		events = append(events, Event{Type: EvtTurnAdvanced, PlayerID: nxt.PlayerID, Name: nxt.Name})
	}
	return events, ns, nil
}

// nextSeat advances cyclically from the given index, skipping eliminated
// seats. Disconnected seats are not skipped: their turn stays pending until
// they reconnect.
func nextSeat(s State, from int) int {
	n := len(s.Seats)
	for step := 1; step <= n; step++ {
		j := (from + step) % n
		if s.Seats[j].Chips > 0 {
			return j
		}
	}
	return from
}

func chipHolders(s State) []int {
	var out []int
	for i, seat := range s.Seats {
		if seat.Chips > 0 {
			out = append(out, i)
		}
	}
	return out
}

func seatIndexByName(s State, name string) int {
	if name == "" {
		return -1
	}
	return slices.IndexFunc(s.Seats, func(st Seat) bool { return st.Name == name })
}

func seatIndexByID(s State, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.Seats, func(st Seat) bool { return st.PlayerID == id })
}
