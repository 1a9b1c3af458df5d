package v1handler

import (
	"qrshield/pkg/domain"
	"qrshield/pkg/serrors"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// request is the body of POST /v1/resolve and POST /v1/analyze.
type request struct {
	URL   string
	Force bool
}

func decodeRequest(b []byte) (request, error) {
	var (
		req    request
		hasURL bool
	)

	d := jx.DecodeBytes(b)
	if d.Next() != jx.Object {
		return request{}, serrors.With(serrors.ErrBadRequest, "request body must be a JSON object")
	}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "url":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "url")
			}
			req.URL, hasURL = v, true

			return nil
		case "force":
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "force")
			}
			req.Force = v

			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return request{}, serrors.Wrap(serrors.ErrBadRequest, err, "invalid request body")
	}
	if !hasURL {
		return request{}, serrors.With(serrors.ErrBadRequest, "url is required")
	}

	return req, nil
}

// ErrorBody is the error member of a failed response.
type ErrorBody struct {
	Code       string
	Message    string
	RetryAfter int
}

func encodeError(e *jx.Encoder, body ErrorBody) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("ok", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("error", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Str(body.Code) })
				e.Field("message", func(e *jx.Encoder) { e.Str(body.Message) })
				if body.RetryAfter > 0 {
					e.Field("retry_after", func(e *jx.Encoder) { e.Int(body.RetryAfter) })
				}
			})
		})
	})
}

func encodeChain(e *jx.Encoder, chain []domain.Hop) {
	e.Arr(func(e *jx.Encoder) {
		for _, hop := range chain {
			e.Str(hop)
		}
	})
}

func encodeExpansion(e *jx.Encoder, inputURL string, exp domain.RedirectExpansion) {
	e.Obj(func(e *jx.Encoder) {
		if inputURL != "" {
			e.Field("input_url", func(e *jx.Encoder) { e.Str(inputURL) })
		}
		e.Field("redirect_chain", func(e *jx.Encoder) { encodeChain(e, exp.Chain) })
		e.Field("resolved_url", func(e *jx.Encoder) { e.Str(exp.FinalURL) })
		e.Field("hop_count", func(e *jx.Encoder) { e.Int(exp.HopCount) })
		if exp.FailureReason != domain.FailureNone {
			e.Field("failure_reason", func(e *jx.Encoder) { e.Str(string(exp.FailureReason)) })
		}
	})
}

func encodeReputation(e *jx.Encoder, rep domain.Reputation) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("feed_checked", func(e *jx.Encoder) { e.Bool(rep.FeedChecked) })
		if rep.FeedChecked {
			e.Field("feed_matches", func(e *jx.Encoder) { e.Int(rep.FeedMatches) })
			e.Field("feed_status", func(e *jx.Encoder) { e.Str(rep.FeedStatus) })
		}
		e.Field("age_known", func(e *jx.Encoder) { e.Bool(rep.AgeKnown) })
		if rep.AgeKnown {
			e.Field("domain_age_days", func(e *jx.Encoder) { e.Int(rep.DomainAgeDays) })
		}
	})
}

func encodeReport(e *jx.Encoder, rep domain.Report) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("stage", func(e *jx.Encoder) { e.Str(string(rep.Stage)) })
		e.Field("input_url", func(e *jx.Encoder) { e.Str(rep.InputURL) })
		e.Field("score", func(e *jx.Encoder) { e.Int(rep.Risk.Score) })
		e.Field("verdict", func(e *jx.Encoder) { e.Str(string(rep.Risk.Verdict)) })
		e.Field("reasons", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, r := range rep.Risk.Reasons {
					e.Str(r)
				}
			})
		})
		e.Field("signals", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range rep.Risk.Signals {
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
						e.Field("value", func(e *jx.Encoder) { e.Str(s.Value) })
						if s.Detail != "" {
							e.Field("detail", func(e *jx.Encoder) { e.Str(s.Detail) })
						}
					})
				}
			})
		})
		if rep.Expansion != nil {
			e.Field("expansion", func(e *jx.Encoder) { encodeExpansion(e, "", *rep.Expansion) })
		}
		if rep.Reputation != nil {
			e.Field("reputation", func(e *jx.Encoder) { encodeReputation(e, *rep.Reputation) })
		}
	})
}

// envelope wraps a successful payload under member.
func envelope(e *jx.Encoder, member string, payload func(e *jx.Encoder)) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("ok", func(e *jx.Encoder) { e.Bool(true) })
		e.Field(member, payload)
	})
}
