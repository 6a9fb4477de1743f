package pipeline

import "time"

// Backoff returns how long to wait before re-running a failed attempt. The
// delay doubles per attempt: with a 60s base that is 60s, 120s, 240s.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base << uint(attempt)
}
