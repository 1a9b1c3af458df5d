package risk

import "qrshield/pkg/domain"

// Signal weights. Every triggered signal adds its weight to the score.
const (
	WeightNotHTTPS        = 15
	WeightDangerousScheme = 70
	WeightSuspiciousTLD   = 25
	WeightExtensionTLD    = 20
	WeightPunycode        = 10
	WeightHomograph       = 50
	WeightTyposquat       = 40

	// Shortener weights grow with how little is known about the service.
	WeightShortenerReputable = 40
	WeightShortenerKnown     = 45
	WeightShortenerUnknown   = 50

	WeightKeywordsSingle   = 20
	WeightKeywordsMultiple = 40
	WeightObfuscation      = 40
	WeightLongURL          = 10
	WeightExecutable       = 20
	WeightArchive          = 10
	WeightArchivePayload   = 15
	WeightIPHost           = 20

	WeightRedirectPerHop   = 5
	WeightRedirectCap      = 20
	WeightRedirectLoop     = 15
	WeightTooManyRedirects = 15
	WeightUnsupportedHop   = 30
	WeightResolveTimeout   = 5
	WeightNetworkError     = 5

	WeightNewDomain = 15
	WeightFeedMatch = 80
)

const (
	// MinRedirectsScored is the hop count from which redirects add weight.
	MinRedirectsScored = 2
	// NewDomainDays is the age under which a domain counts as newly registered.
	NewDomainDays = 30

	// InvalidScore is the score of input that cannot be parsed as a URL.
	InvalidScore = 50
	// InvalidUnsafeScore is used instead when the input starts with a dangerous scheme.
	InvalidUnsafeScore = 100

	MinScore = 0
	MaxScore = 100
)

// Verdict thresholds.
const (
	BlockThreshold = 70
	WarnThreshold  = 40
)

// VerdictFor maps a score to its verdict.
func VerdictFor(score int) domain.Verdict {
	switch {
	case score >= BlockThreshold:
		return domain.VerdictBlock
	case score >= WarnThreshold:
		return domain.VerdictWarn
	default:
		return domain.VerdictSafe
	}
}
