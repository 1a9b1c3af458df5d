// Package risk turns extracted signals, a redirect expansion and reputation
// data into a clamped score, a verdict and an ordered list of reasons.
//
// Scoring is a pure function: identical input always yields an identical
// result. Signals and reasons appear in check order, never in weight order.
package risk

import (
	"fmt"
	"strings"

	"qrshield/pkg/domain"
	"qrshield/pkg/signals"
)

// InvalidReason is the single reason reported for unparsable input.
const InvalidReason = "Invalid URL"

// Input is everything the aggregator scores.
type Input struct {
	// Signals are the observations about the candidate URL.
	Signals signals.Set
	// Destination holds observations about the resolved URL when its host differs.
	Destination *signals.Set
	// Expansion is nil when the URL was not resolved.
	Expansion *domain.RedirectExpansion
	// Reputation is nil when no collaborator answered.
	Reputation *domain.Reputation
}

type scorer struct {
	score   int
	signals []domain.Signal
	reasons []string
}

func (s *scorer) add(sig domain.Signal, weight int, reason string) {
	s.signals = append(s.signals, sig)
	if weight == 0 {
		return
	}
	s.score += weight
	s.reasons = append(s.reasons, reason)
}

// Score computes the risk result for in.
func Score(in Input) domain.RiskResult {
	var s scorer

	s.addURL(in.Signals, "", "")
	if in.Destination != nil {
		s.addURL(*in.Destination, "destination_", "Destination: ")
	}
	if in.Expansion != nil {
		s.addExpansion(*in.Expansion)
	}
	if in.Reputation != nil {
		s.addReputation(*in.Reputation)
	}

	score := min(max(s.score, MinScore), MaxScore)

	return domain.RiskResult{
		Score:   score,
		Verdict: VerdictFor(score),
		Signals: nonNil(s.signals),
		Reasons: nonNil(s.reasons),
	}
}

// Invalid is the fallback result for input that cannot be parsed as a URL.
func Invalid(raw string) domain.RiskResult {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	scheme, _, found := strings.Cut(lowered, ":")
	if found && scheme != "" && !strings.ContainsAny(scheme, "/?# ") && signals.IsDangerousScheme(scheme) {
		return domain.RiskResult{
			Score:   InvalidUnsafeScore,
			Verdict: VerdictFor(InvalidUnsafeScore),
			Signals: []domain.Signal{{Name: signals.NameDangerousScheme, Value: "true", Detail: scheme + ":"}},
			Reasons: []string{InvalidReason},
		}
	}

	return domain.RiskResult{
		Score:   InvalidScore,
		Verdict: VerdictFor(InvalidScore),
		Signals: []domain.Signal{},
		Reasons: []string{InvalidReason},
	}
}

func (s *scorer) addURL(set signals.Set, namePrefix, reasonPrefix string) {
	for _, sig := range set.List() {
		weight, reason := weigh(set, sig.Name)
		sig.Name = namePrefix + sig.Name
		s.add(sig, weight, reasonPrefix+reason)
	}
}

//nolint: cyclop
func weigh(set signals.Set, name string) (int, string) {
	switch name {
	case signals.NameHTTPS:
		if set.HTTPS || set.DangerousScheme {
			return 0, ""
		}

		return WeightNotHTTPS, "Connection is not encrypted (" + set.Scheme + ")"
	case signals.NameDangerousScheme:
		return WeightDangerousScheme, fmt.Sprintf("Uses a dangerous scheme (%s:)", set.Scheme)
	case signals.NameSuspiciousTLD:
		return WeightSuspiciousTLD, fmt.Sprintf("Suspicious top-level domain (.%s)", set.SuspiciousTLD)
	case signals.NameExtensionTLD:
		return WeightExtensionTLD, fmt.Sprintf("Top-level domain looks like a file extension (.%s)", set.SuspiciousTLD)
	case signals.NamePunycode:
		return WeightPunycode, "Internationalized domain name (" + set.Punycode + ")"
	case signals.NameHomograph:
		return WeightHomograph, "Lookalike characters in domain: " + strings.Join(set.Homoglyphs, ", ")
	case signals.NameTyposquat:
		return WeightTyposquat, fmt.Sprintf("Domain resembles %s (edit distance %d)", set.Typosquat.Brand, set.Typosquat.Distance)
	case signals.NameShortener:
		switch {
		case set.Shortener == signals.ShortenerUnknown:
			return WeightShortenerUnknown, "Looks like an unknown link shortener (" + set.Host + ")"
		case set.ReputableShort:
			return WeightShortenerReputable, "Link shortener hides the destination (" + set.Host + ")"
		default:
			return WeightShortenerKnown, "Known link shortener hides the destination (" + set.Host + ")"
		}
	case signals.NameKeywords:
		categories := set.KeywordCategories()
		weight := WeightKeywordsSingle
		if len(categories) > 1 {
			weight = WeightKeywordsMultiple
		}

		return weight, "Suspicious keywords (" + strings.Join(categories, ", ") + ")"
	case signals.NameObfuscation:
		return WeightObfuscation, "Obfuscated URL: " + strings.Join(set.Obfuscation, ", ")
	case signals.NameLongURL:
		return WeightLongURL, fmt.Sprintf("Unusually long URL (%d chars)", set.Length)
	case signals.NameExecutable:
		return WeightExecutable, "Links to an executable file (" + set.Executable + ")"
	case signals.NameArchive:
		if set.ArchivePayload {
			return WeightArchive + WeightArchivePayload, "Links to an archive with download parameters (" + set.Archive + ")"
		}

		return WeightArchive, "Links to an archive file (" + set.Archive + ")"
	case signals.NameIPHost:
		return WeightIPHost, "Host is a raw IP address (" + set.Host + ")"
	}

	return 0, ""
}

func (s *scorer) addExpansion(e domain.RedirectExpansion) {
	if e.HopCount >= MinRedirectsScored {
		weight := min(e.HopCount*WeightRedirectPerHop, WeightRedirectCap)
		s.add(domain.Signal{Name: "redirects", Value: fmt.Sprint(e.HopCount), Detail: e.FinalURL},
			weight, fmt.Sprintf("Redirects %d times before reaching the destination", e.HopCount))
	}

	var (
		weight int
		reason string
	)
	switch e.FailureReason {
	case domain.FailureNone:
		return
	case domain.FailureRedirectLoop:
		weight, reason = WeightRedirectLoop, "Redirect loop detected"
	case domain.FailureTooManyRedirects:
		weight, reason = WeightTooManyRedirects, "Too many redirects"
	case domain.FailureUnsupportedScheme:
		weight, reason = WeightUnsupportedHop, "Redirects to an unsupported scheme"
	case domain.FailureTimeout:
		weight, reason = WeightResolveTimeout, "Destination did not respond in time"
	case domain.FailureNetworkError:
		weight, reason = WeightNetworkError, "Destination could not be reached safely"
	}
	s.add(domain.Signal{Name: "resolution_failure", Value: string(e.FailureReason), Detail: e.FinalURL}, weight, reason)
}

func (s *scorer) addReputation(r domain.Reputation) {
	if r.FeedChecked && r.FeedMatches > 0 {
		s.add(domain.Signal{Name: "threat_feed", Value: fmt.Sprint(r.FeedMatches), Detail: r.FeedStatus},
			WeightFeedMatch, fmt.Sprintf("Listed by threat intelligence feeds (%d matches)", r.FeedMatches))
	}
	if r.AgeKnown && r.DomainAgeDays < NewDomainDays {
		s.add(domain.Signal{Name: "new_domain", Value: "true", Detail: fmt.Sprintf("%d days", r.DomainAgeDays)},
			WeightNewDomain, fmt.Sprintf("Domain was registered %d days ago", r.DomainAgeDays))
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
