package domain

// Verdict is the three-tier outcome derived from a risk score.
type Verdict string

const (
	// VerdictSafe means no significant risk was found.
	VerdictSafe Verdict = "safe"
	// VerdictWarn means the user should be cautious before visiting.
	VerdictWarn Verdict = "warn"
	// VerdictBlock means the destination should not be visited.
	VerdictBlock Verdict = "block"
)

// Signal is a named observation about a URL along with a human-readable explanation.
type Signal struct {
	// Name is the stable identifier of the check, e.g. "suspicious_tld".
	Name string `json:"name"`
	// Value is the categorical or boolean value of the observation, e.g. "true" or "known".
	Value string `json:"value"`
	// Detail explains what triggered the observation, e.g. ".zip".
	Detail string `json:"detail,omitempty"`
}

// RiskResult is the scored, explainable verdict for one candidate URL.
type RiskResult struct {
	// Score is the clamped sum of triggered weights in [0, 100].
	Score int `json:"score"`
	// Verdict is a monotonic function of Score.
	Verdict Verdict `json:"verdict"`
	// Signals lists the triggered observations in evaluation order.
	Signals []Signal `json:"signals"`
	// Reasons holds one human-readable sentence per triggered signal, in evaluation order.
	Reasons []string `json:"reasons"`
}

// Reputation carries what external collaborators reported about a host.
// Unknown values contribute nothing to the score.
type Reputation struct {
	// FeedChecked is true when at least one threat feed answered.
	FeedChecked bool `json:"feedChecked"`
	// FeedMatches is the number of malicious entries the feeds reported.
	FeedMatches int `json:"feedMatches"`
	// FeedStatus is the raw status string reported by the feeds.
	FeedStatus string `json:"feedStatus,omitempty"`
	// AgeKnown is true when DomainAgeDays holds a real value.
	AgeKnown bool `json:"ageKnown"`
	// DomainAgeDays is the registration age of the destination domain.
	DomainAgeDays int `json:"domainAgeDays,omitempty"`
}
