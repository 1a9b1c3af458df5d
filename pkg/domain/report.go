package domain

// Stage identifies which emission of a progressive inspection a Report is.
type Stage string

const (
	// StageLocal reports are computed from the URL string only, without network access.
	StageLocal Stage = "local"
	// StageResolving reports score a redirect chain that is still being walked.
	StageResolving Stage = "resolving"
	// StageResolved reports include the redirect expansion and reputation lookups.
	StageResolved Stage = "resolved"
)

// Report is one emission of an inspection.
type Report struct {
	// Stage tells whether this is the immediate local result, a progress update or the fully resolved one.
	Stage Stage `json:"stage"`
	// InputURL is the candidate string as received.
	InputURL string `json:"inputUrl"`
	// Expansion is nil for local reports and for URLs that are never resolved.
	// In resolving reports it is the chain walked so far.
	Expansion *RedirectExpansion `json:"expansion,omitempty"`
	// Reputation is nil when no collaborator was consulted.
	Reputation *Reputation `json:"reputation,omitempty"`
	// Risk is the scored verdict.
	Risk RiskResult `json:"risk"`
}

