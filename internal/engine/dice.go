package engine

import (
	"math/rand"
	"time"
)

// The probability model is four equally likely outcomes per die: pass left,
// pass right, pot, do nothing. This follows the game's rules text rather
// than the six-sided physical die.
var faces = [...]Face{FaceLeft, FaceRight, FaceCenter, FaceBlank}

type RollerConfig struct {
	// Seed fixes the die sequence. Zero means seed from the clock.
	Seed int64
}

// Roller samples die faces. It is not safe for concurrent use; each session
// owns its own Roller.
type Roller struct {
	rng *rand.Rand
}

func NewRoller(cfg *RollerConfig) *Roller {
	seed := time.Now().UnixNano()
	if cfg != nil && cfg.Seed != 0 {
		seed = cfg.Seed
	}
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

func (r *Roller) Roll(n int) []Face {
	out := make([]Face, n)
	for i := range out {
		out[i] = faces[r.rng.Intn(len(faces))]
	}
	return out
}
