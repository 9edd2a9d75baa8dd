package fleet

import "math/rand/v2"

// Noise supplies the random perturbations applied on every tick.
type Noise interface {
	Turn() float64     // heading change in degrees, [-2, 2]
	ThrustDelta() int  // thruster change, [-5, 5]
	TargetOffset() int // advisory target heading offset, [-10, 10]
	PID() float64      // advisory controller value, [0.5, 2.5]
}

const (
	maxTurn         = 2.0
	maxThrustDelta  = 5
	maxTargetOffset = 10
	minPID, maxPID  = 0.5, 2.5
)

type randNoise struct {
	r *rand.Rand
}

// NewNoise returns the default uniform noise source. A zero seed picks a
// random one; any other seed makes runs reproducible.
func NewNoise(seed uint64) Noise {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &randNoise{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (n *randNoise) Turn() float64 {
	return n.r.Float64()*2*maxTurn - maxTurn
}

func (n *randNoise) ThrustDelta() int {
	return n.r.IntN(2*maxThrustDelta+1) - maxThrustDelta
}

func (n *randNoise) TargetOffset() int {
	return n.r.IntN(2*maxTargetOffset+1) - maxTargetOffset
}

func (n *randNoise) PID() float64 {
	return minPID + n.r.Float64()*(maxPID-minPID)
}
