package domain

// Hop is a single URL in a redirect chain.
type Hop = string

// FailureReason explains why an expansion stopped before reaching a
// non-redirect response. The empty value means the chain terminated normally.
type FailureReason string

const (
	// FailureNone marks a chain that ended on a non-redirect response.
	FailureNone FailureReason = ""
	// FailureNetworkError covers transport errors, aborted requests and blocked private destinations.
	FailureNetworkError FailureReason = "network_error"
	// FailureTooManyRedirects is set when the hop budget was exhausted.
	FailureTooManyRedirects FailureReason = "too_many_redirects"
	// FailureRedirectLoop is set when a redirect points back to an already visited URL.
	FailureRedirectLoop FailureReason = "redirect_loop"
	// FailureUnsupportedScheme is set for unparsable hops or schemes other than http(s).
	FailureUnsupportedScheme FailureReason = "unsupported_scheme"
	// FailureTimeout is set when the expansion deadline or the hop timeout expired.
	FailureTimeout FailureReason = "timeout"
)

// RedirectExpansion is the outcome of following a URL's redirect chain.
//
// Invariants: Chain is never empty, FinalURL equals the last element of Chain
// and HopCount equals len(Chain)-1.
type RedirectExpansion struct {
	// Chain holds the visited URLs in order; the first element is the original URL.
	Chain []Hop `json:"chain"`
	// FinalURL is the last known destination.
	FinalURL Hop `json:"finalUrl"`
	// HopCount is the number of confirmed redirects.
	HopCount int `json:"hopCount"`
	// FailureReason is set when the expansion stopped early.
	FailureReason FailureReason `json:"failureReason,omitempty"`
}

// NewExpansion starts an expansion holding only the original URL.
func NewExpansion(original Hop) RedirectExpansion {
	return RedirectExpansion{
		Chain:    []Hop{original},
		FinalURL: original,
	}
}

// Append extends the chain with a confirmed redirect target.
func (e *RedirectExpansion) Append(next Hop) {
	e.Chain = append(e.Chain, next)
	e.FinalURL = next
	e.HopCount = len(e.Chain) - 1
}

// Failed reports whether the expansion stopped early.
func (e RedirectExpansion) Failed() bool {
	return e.FailureReason != FailureNone
}

// Clone returns a copy that does not share the chain's backing array.
func (e RedirectExpansion) Clone() RedirectExpansion {
	out := e
	out.Chain = append([]Hop(nil), e.Chain...)

	return out
}
