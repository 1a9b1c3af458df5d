package analyzer_test

import (
	"context"
	"qrshield/internal/analyzer"
	"qrshield/internal/resolver"
	mockresolver "qrshield/internal/resolver/mock"
	"qrshield/pkg/domain"
	"qrshield/pkg/risk"
	"qrshield/pkg/serrors"
	"qrshield/pkg/signals"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeReputation struct {
	mu    sync.Mutex
	hosts []string
	rep   *domain.Reputation
}

func (f *fakeReputation) Lookup(_ context.Context, host string) *domain.Reputation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts = append(f.hosts, host)

	return f.rep
}

func newTestAnalyzer(t *testing.T, rep analyzer.Reputation) (*mockresolver.MockExpander, analyzer.Analyzer) {
	t.Helper()

	ctrl := gomock.NewController(t)
	res := mockresolver.NewMockExpander(ctrl)
	a, err := analyzer.New(analyzer.Deps{
		Extractor:  signals.New(signals.Options{}),
		Resolver:   res,
		Reputation: rep,
	}, analyzer.Options{MaxURLLength: 100})
	require.NoError(t, err)

	return res, a
}

func collect(t *testing.T, ch <-chan domain.Report) []domain.Report {
	t.Helper()

	var out []domain.Report
	for rep := range ch {
		out = append(out, rep)
	}

	return out
}

func signalNames(res domain.RiskResult) []string {
	names := make([]string, 0, len(res.Signals))
	for _, s := range res.Signals {
		names = append(names, s.Name)
	}

	return names
}

func TestAnalyzer_Inspect_Validation(t *testing.T) {
	_, a := newTestAnalyzer(t, nil)

	_, err := a.Inspect(context.Background(), "   ")
	require.ErrorIs(t, err, serrors.ErrBadRequest)

	_, err = a.Inspect(context.Background(), "https://example.com/"+strings.Repeat("a", 100))
	require.ErrorIs(t, err, serrors.ErrBadRequest)
}

func TestAnalyzer_Inspect_InvalidURL(t *testing.T) {
	_, a := newTestAnalyzer(t, nil)

	ch, err := a.Inspect(context.Background(), "not a url")
	require.NoError(t, err)

	reports := collect(t, ch)
	require.Len(t, reports, 1)
	require.Equal(t, domain.StageResolved, reports[0].Stage)
	require.Equal(t, risk.Invalid("not a url"), reports[0].Risk)
	require.Equal(t, []string{risk.InvalidReason}, reports[0].Risk.Reasons)
	require.Nil(t, reports[0].Expansion)
}

func TestAnalyzer_Inspect_DangerousSchemeIsNotResolved(t *testing.T) {
	// the mock resolver fails the test on any call
	_, a := newTestAnalyzer(t, nil)

	ch, err := a.Inspect(context.Background(), "javascript:alert(document.cookie)")
	require.NoError(t, err)

	reports := collect(t, ch)
	require.Len(t, reports, 1)
	require.Equal(t, domain.VerdictBlock, reports[0].Risk.Verdict)
	require.Contains(t, signalNames(reports[0].Risk), signals.NameDangerousScheme)
}

func TestAnalyzer_Inspect_LocalThenResolved(t *testing.T) {
	rep := &fakeReputation{rep: &domain.Reputation{FeedChecked: true, FeedMatches: 1, FeedStatus: "listed"}}
	res, a := newTestAnalyzer(t, rep)

	exp := domain.NewExpansion("https://bit.ly/abc")
	exp.Append("http://paypal-login.tk/verify")
	res.EXPECT().Resolve(gomock.Any(), "https://bit.ly/abc").Return(exp)

	ch, err := a.Inspect(context.Background(), "https://bit.ly/abc")
	require.NoError(t, err)

	reports := collect(t, ch)
	require.Len(t, reports, 2)

	local, resolved := reports[0], reports[1]
	require.Equal(t, domain.StageLocal, local.Stage)
	require.Nil(t, local.Expansion)
	require.Nil(t, local.Reputation)

	require.Equal(t, domain.StageResolved, resolved.Stage)
	require.Equal(t, "https://bit.ly/abc", resolved.InputURL)
	require.Equal(t, &exp, resolved.Expansion)
	require.Equal(t, rep.rep, resolved.Reputation)
	require.Equal(t, []string{"paypal-login.tk"}, rep.hosts)
	require.Contains(t, signalNames(resolved.Risk), "destination_"+signals.NameSuspiciousTLD)
	require.Greater(t, resolved.Risk.Score, local.Risk.Score)
	require.Equal(t, domain.VerdictBlock, resolved.Risk.Verdict)
}

func TestAnalyzer_Inspect_SameHostHasNoDestinationSignals(t *testing.T) {
	res, a := newTestAnalyzer(t, nil)

	exp := domain.NewExpansion("https://example.com/")
	exp.Append("https://example.com/home")
	res.EXPECT().Resolve(gomock.Any(), "https://EXAMPLE.com/").Return(exp)

	report, err := a.Analyze(context.Background(), "https://EXAMPLE.com/")
	require.NoError(t, err)
	require.Equal(t, domain.StageResolved, report.Stage)
	for _, name := range signalNames(report.Risk) {
		require.False(t, strings.HasPrefix(name, "destination_"), name)
	}
	require.Equal(t, domain.VerdictSafe, report.Risk.Verdict)
}

func TestAnalyzer_Analyze_Force(t *testing.T) {
	res, a := newTestAnalyzer(t, nil)

	res.EXPECT().Resolve(gomock.Any(), "https://example.com/", gomock.Any()).
		Return(domain.NewExpansion("https://example.com/"))

	report, err := a.Analyze(context.Background(), "https://example.com/", analyzer.WithForce(true))
	require.NoError(t, err)
	require.NotNil(t, report.Expansion)
}

func TestAnalyzer_Resolve(t *testing.T) {
	res, a := newTestAnalyzer(t, nil)

	_, err := a.Resolve(context.Background(), "/relative")
	require.ErrorIs(t, err, serrors.ErrBadRequest)

	exp := domain.NewExpansion("https://t.co/x")
	exp.Append("https://example.com/")
	res.EXPECT().Resolve(gomock.Any(), "https://t.co/x").Return(exp)

	got, err := a.Resolve(context.Background(), " https://t.co/x ")
	require.NoError(t, err)
	require.Equal(t, exp, got)
}

func expansionsOf(exps ...domain.RedirectExpansion) <-chan domain.RedirectExpansion {
	ch := make(chan domain.RedirectExpansion, len(exps))
	for _, exp := range exps {
		ch <- exp
	}
	close(ch)

	return ch
}

func stages(reports []domain.Report) []domain.Stage {
	out := make([]domain.Stage, 0, len(reports))
	for _, rep := range reports {
		out = append(out, rep.Stage)
	}

	return out
}

func TestAnalyzer_Inspect_Progress(t *testing.T) {
	rep := &fakeReputation{rep: &domain.Reputation{FeedChecked: true, FeedStatus: "clean"}}
	res, a := newTestAnalyzer(t, rep)

	first := domain.NewExpansion("https://bit.ly/abc")
	first.Append("https://t.co/x")
	second := first.Clone()
	second.Append("http://paypal-login.tk/verify")
	res.EXPECT().Stream(gomock.Any(), "https://bit.ly/abc").
		Return(expansionsOf(first, second, second.Clone()))

	ch, err := a.Inspect(context.Background(), "https://bit.ly/abc", analyzer.WithProgress(true))
	require.NoError(t, err)

	reports := collect(t, ch)
	require.Equal(t, []domain.Stage{
		domain.StageLocal, domain.StageResolving, domain.StageResolving, domain.StageResolved,
	}, stages(reports))

	require.Equal(t, &first, reports[1].Expansion)
	require.Nil(t, reports[1].Reputation)
	require.Equal(t, &second, reports[2].Expansion)
	require.Contains(t, signalNames(reports[2].Risk), "destination_"+signals.NameSuspiciousTLD)
	require.Nil(t, reports[2].Reputation)

	resolved := reports[3]
	require.Equal(t, &second, resolved.Expansion)
	require.Equal(t, rep.rep, resolved.Reputation)
	require.Equal(t, []string{"paypal-login.tk"}, rep.hosts)
}

func TestAnalyzer_Inspect_ProgressFailedExpansion(t *testing.T) {
	res, a := newTestAnalyzer(t, nil)

	partial := domain.NewExpansion("https://a.example/")
	partial.Append("https://b.example/")
	final := partial.Clone()
	final.FailureReason = domain.FailureTimeout
	res.EXPECT().Stream(gomock.Any(), "https://a.example/").Return(expansionsOf(partial, final))

	ch, err := a.Inspect(context.Background(), "https://a.example/", analyzer.WithProgress(true))
	require.NoError(t, err)

	reports := collect(t, ch)
	require.Equal(t, []domain.Stage{domain.StageLocal, domain.StageResolving, domain.StageResolved}, stages(reports))
	require.Equal(t, domain.FailureTimeout, reports[2].Expansion.FailureReason)
	require.Contains(t, signalNames(reports[2].Risk), "resolution_failure")
	require.NotContains(t, signalNames(reports[1].Risk), "resolution_failure")
}

func TestAnalyzer_Inspect_ProgressWithoutRedirects(t *testing.T) {
	res, a := newTestAnalyzer(t, nil)

	res.EXPECT().Stream(gomock.Any(), "https://example.com/", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, opts ...resolver.CallOption) <-chan domain.RedirectExpansion {
			require.Len(t, opts, 1)

			return expansionsOf(domain.NewExpansion("https://example.com/"))
		})

	ch, err := a.Inspect(context.Background(), "https://example.com/",
		analyzer.WithProgress(true), analyzer.WithForce(true))
	require.NoError(t, err)
	require.Equal(t, []domain.Stage{domain.StageLocal, domain.StageResolved}, stages(collect(t, ch)))
}
