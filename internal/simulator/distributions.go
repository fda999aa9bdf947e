package simulator

import (
	"math/rand"
	"strconv"
	"time"
)

type DelayBucket struct {
	Delay  time.Duration
	Weight float64
}

// ArrivalDelays is the distribution of extra transit time applied to each
// arrival in dynamic mode.
var ArrivalDelays = []DelayBucket{
	{Delay: 0, Weight: 0.50},
	{Delay: 30 * time.Minute, Weight: 0.20},
	{Delay: time.Hour, Weight: 0.15},
	{Delay: 3 * time.Hour, Weight: 0.10},
	{Delay: 5 * time.Hour, Weight: 0.05},
}

// DelaySource draws the delay applied to one arrival.
type DelaySource interface {
	Draw() time.Duration
}

// WeightedDelay draws from a discrete distribution using its own random
// source, so a fixed seed reproduces a run.
type WeightedDelay struct {
	rng     *rand.Rand
	buckets []DelayBucket
	total   float64
}

func NewWeightedDelay(rng *rand.Rand, buckets []DelayBucket) *WeightedDelay {
	var total float64
	for _, b := range buckets {
		total += b.Weight
	}
	return &WeightedDelay{rng: rng, buckets: buckets, total: total}
}

func (w *WeightedDelay) Draw() time.Duration {
	if len(w.buckets) == 0 {
		return 0
	}
	r := w.rng.Float64() * w.total
	cumulative := 0.0
	for _, b := range w.buckets {
		cumulative += b.Weight
		if r < cumulative {
			return b.Delay
		}
	}
	return w.buckets[len(w.buckets)-1].Delay
}

// FixedDelay always returns the same delay.
type FixedDelay time.Duration

func (f FixedDelay) Draw() time.Duration { return time.Duration(f) }

// DelayConditions renders a delay the way results annotate it, e.g.
// "Delay by 0.5hr".
func DelayConditions(d time.Duration) string {
	if d <= 0 {
		return "No delay"
	}
	return "Delay by " + strconv.FormatFloat(d.Hours(), 'f', -1, 64) + "hr"
}
