package syncer

import "time"

const (
	backoffBase = 15 * time.Second
	backoffCap  = 15 * time.Minute
)

// Backoff returns the delay before retry attempt n+1, after n attempts have
// failed: min(15s * 2^(n-1), 15m). This is the only place the retry delay is
// computed; the scheduler never invents its own.
func Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := backoffBase
	for i := 1; i < n; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}
