package worker

import "time"

// RetryPolicy controls backoff for failed payment tasks.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  30 * time.Second,
		MaxDelay:   30 * time.Minute,
	}
}

// NextDelay returns the exponential backoff delay for a given retry
// count, capped at MaxDelay.
func (p RetryPolicy) NextDelay(retryCount int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// Exhausted reports whether a task has used up its retries.
func (p RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount >= p.MaxRetries
}
