package scheduler

import (
	"math/rand"
	"time"
)

// backoffDelay grows exponentially from RetryBase up to RetryMaxDelay
// with +-RetryJitter applied, so a burst of failing deliveries does not
// hammer the platform in lockstep.
func backoffDelay(cfg Config, retry int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < retry; i++ {
		d *= 2
		if d > cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	if cfg.RetryJitter > 0 {
		r := (rand.Float64()*2 - 1) * cfg.RetryJitter
		d = time.Duration(float64(d) * (1 + r))
		if d < 0 {
			d = 0
		}
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
