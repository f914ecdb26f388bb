package models

const (
	// CancelNoticeHours is the minimum lead time before start_time for a
	// booking to be cancellable.
	CancelNoticeHours = 24

	// DefaultEventTTL is how long processed webhook event ids are kept
	// for deduplication, in seconds.
	DefaultEventTTL = 72 * 60 * 60

	// DefaultCurrency is used when the config leaves currency empty.
	DefaultCurrency = "usd"

	// RateLimitRPS and RateLimitBurst are the API defaults when the
	// config sets no rate limit.
	RateLimitRPS   = 10
	RateLimitBurst = 20
)
