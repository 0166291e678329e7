package unit

import (
	"math/rand"
	"time"

	"github.com/nextest-rs/nextest-sub001/testlist"
)

// delayIter produces successive retry delays per testlist.DelayPolicy:
// constant for DelayFixed, doubling (capped at Max) for DelayExponential,
// both optionally shrunk by a uniform random jitter factor in [Jitter, 1].
type delayIter struct {
	policy  testlist.DelayPolicy
	attempt int
}

func newDelayIter(p testlist.DelayPolicy) *delayIter {
	return &delayIter{policy: p}
}

// Next returns the delay before the next retry attempt; call once per
// retry, in order.
func (d *delayIter) Next() time.Duration {
	d.attempt++
	dur := d.policy.Base

	if d.policy.Kind == testlist.DelayExponential {
		shift := d.attempt - 1
		if shift > 32 {
			shift = 32
		}
		dur = d.policy.Base * time.Duration(int64(1)<<uint(shift))
		if d.policy.Max > 0 && dur > d.policy.Max {
			dur = d.policy.Max
		}
	}

	jitter := d.policy.Jitter
	if jitter <= 0 || jitter > 1 {
		jitter = 1
	}
	if jitter < 1 {
		factor := jitter + rand.Float64()*(1-jitter)
		dur = time.Duration(float64(dur) * factor)
	}
	return dur
}
