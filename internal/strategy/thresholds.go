package strategy

import (
	"fmt"
	"math/rand"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

// DoubleThresholds proposes offers drawn uniformly from [LowerOffer,
// UpperOffer] and accepts any offer inside [LowerAccept, UpperAccept].
type DoubleThresholds struct {
	LowerOffer  float64
	UpperOffer  float64
	LowerAccept float64
	UpperAccept float64
}

func NewDoubleThresholds(lo, uo, la, ua float64) (*DoubleThresholds, error) {
	for _, v := range []float64{lo, uo, la, ua} {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("threshold out of range [0,1]: %f", v)
		}
	}
	if lo > uo {
		return nil, fmt.Errorf("offer interval is inverted: [%f, %f]", lo, uo)
	}
	if la > ua {
		return nil, fmt.Errorf("accept interval is inverted: [%f, %f]", la, ua)
	}
	return &DoubleThresholds{LowerOffer: lo, UpperOffer: uo, LowerAccept: la, UpperAccept: ua}, nil
}

func (*DoubleThresholds) Name() string { return "DoubleThresholds" }
func (*DoubleThresholds) Reset()       {}
func (d *DoubleThresholds) Clone() match.Player {
	c := *d
	return &c
}
func (d *DoubleThresholds) Stochastic() bool {
	return d.UpperOffer > d.LowerOffer
}

func (d *DoubleThresholds) Offer(rng *rand.Rand) float64 {
	if d.UpperOffer <= d.LowerOffer {
		return d.LowerOffer
	}
	return d.LowerOffer + rng.Float64()*(d.UpperOffer-d.LowerOffer)
}

func (d *DoubleThresholds) Accept(offer float64) bool {
	return offer >= d.LowerAccept && offer <= d.UpperAccept
}
