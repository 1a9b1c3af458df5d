// Package reputation defines the external collaborators consulted about a
// destination host and combines their answers into a domain.Reputation.
// Every collaborator may fail; failures degrade to "unknown" and never
// change the score.
package reputation

import (
	"context"
	"time"
)

// Feed statuses reported in FeedResult.Status.
const (
	StatusListed = "listed"
	StatusClean  = "clean"
)

// FeedResult is a threat feed's answer for one host.
type FeedResult struct {
	Matches int    // Matches is the number of malicious entries reported for the host.
	Status  string // Status is StatusListed or StatusClean.
}

// RateLimitStatus describes the API quota reported by a provider.
type RateLimitStatus struct {
	Limit     int       // Limit is the total number of allowed requests in the current window.
	Remaining int       // Remaining indicates how many requests are left in the current window.
	ResetAt   time.Time // ResetAt is when the window resets.
}

//go:generate mockgen -package mockreputation -source=interface.go -destination=mock/mockreputation.go *
type ThreatFeed interface {
	// Lookup reports known malicious entries for host.
	Lookup(ctx context.Context, host string) (FeedResult, error)
}

type DomainAge interface {
	// Age returns the registration age of a registrable domain in days.
	// known is false when the registry has no usable record.
	Age(ctx context.Context, domain string) (days int, known bool, err error)
}
