package gateway

import (
	"math"
	"time"
)

// Backoff computes reconnect delays as min(Base * 2^attempt, Cap)
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the wait before reconnect attempt n (n >= 1)
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
		if b.Cap > 0 && d >= b.Cap {
			return b.Cap
		}
	}
	if b.Cap > 0 && d > b.Cap {
		return b.Cap
	}
	return d
}
