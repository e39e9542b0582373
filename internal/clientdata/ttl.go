package clientdata

import "time"

// TTL constants for different data types.
// These are added to the current time when storing to calculate expires_at.
const (
	// TTLChainBalance is short: balances move with every block, and a stale
	// value only delays drift detection by this much.
	TTLChainBalance = 30 * time.Second
)
