package runtime

import (
	"time"

	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetryBase   = 60 * time.Second
	DefaultRetryMax    = 30 * time.Minute
)

type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

func RetryPolicyFromEnv() RetryPolicy {
	return RetryPolicy{
		Base: envutil.Duration("JOB_RETRY_BASE", DefaultRetryBase),
		Max:  envutil.Duration("JOB_RETRY_MAX", DefaultRetryMax),
	}
}

// Delay is min(Base*2^(attempt-1), Max) for the attempt that just failed.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base, max := p.Base, p.Max
	if base <= 0 {
		base = DefaultRetryBase
	}
	if max <= 0 {
		max = DefaultRetryMax
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
