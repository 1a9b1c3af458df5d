package reputation_test

import (
	"context"
	"errors"
	"qrshield/pkg/cache"
	"qrshield/pkg/domain"
	"qrshield/pkg/reputation"
	mockreputation "qrshield/pkg/reputation/mock"
	"qrshield/pkg/storage/memory"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMultiFeed_Lookup(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	t.Run("sums answers and tolerates partial failure", func(t *testing.T) {
		a := mockreputation.NewMockThreatFeed(ctrl)
		b := mockreputation.NewMockThreatFeed(ctrl)
		c := mockreputation.NewMockThreatFeed(ctrl)
		a.EXPECT().Lookup(gomock.Any(), "evil.example").Return(reputation.FeedResult{Matches: 2, Status: reputation.StatusListed}, nil)
		b.EXPECT().Lookup(gomock.Any(), "evil.example").Return(reputation.FeedResult{Status: reputation.StatusClean}, nil)
		c.EXPECT().Lookup(gomock.Any(), "evil.example").Return(reputation.FeedResult{}, errors.New("503"))

		res, err := reputation.MultiFeed{a, b, c}.Lookup(ctx, "evil.example")
		require.NoError(t, err)
		require.Equal(t, 2, res.Matches)
		require.Equal(t, reputation.StatusListed, res.Status)
	})

	t.Run("clean when nothing matched", func(t *testing.T) {
		a := mockreputation.NewMockThreatFeed(ctrl)
		a.EXPECT().Lookup(gomock.Any(), "ok.example").Return(reputation.FeedResult{Status: reputation.StatusClean}, nil)

		res, err := reputation.MultiFeed{a}.Lookup(ctx, "ok.example")
		require.NoError(t, err)
		require.Zero(t, res.Matches)
		require.Equal(t, reputation.StatusClean, res.Status)
	})

	t.Run("fails when every feed failed", func(t *testing.T) {
		boom := errors.New("boom")
		a := mockreputation.NewMockThreatFeed(ctrl)
		a.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(reputation.FeedResult{}, boom)

		_, err := reputation.MultiFeed{a}.Lookup(ctx, "x.example")
		require.ErrorIs(t, err, boom)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := reputation.MultiFeed{}.Lookup(ctx, "x.example")
		require.ErrorIs(t, err, reputation.ErrNoFeeds)
	})
}

func TestService_Lookup(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		require.Nil(t, reputation.New(reputation.Options{}).Lookup(ctx, "a.example"))
		require.False(t, reputation.New(reputation.Options{}).Enabled())
	})

	t.Run("combines feed and age", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		feed := mockreputation.NewMockThreatFeed(ctrl)
		age := mockreputation.NewMockDomainAge(ctrl)
		feed.EXPECT().Lookup(gomock.Any(), "login.evil.co.uk").Return(reputation.FeedResult{Matches: 1, Status: reputation.StatusListed}, nil)
		age.EXPECT().Age(gomock.Any(), "evil.co.uk").Return(3, true, nil)

		rep := reputation.New(reputation.Options{Feed: feed, Age: age}).Lookup(ctx, "login.evil.co.uk")
		require.Equal(t, &domain.Reputation{
			FeedChecked:   true,
			FeedMatches:   1,
			FeedStatus:    reputation.StatusListed,
			AgeKnown:      true,
			DomainAgeDays: 3,
		}, rep)
	})

	t.Run("failures leave fields unknown", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		feed := mockreputation.NewMockThreatFeed(ctrl)
		age := mockreputation.NewMockDomainAge(ctrl)
		feed.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(reputation.FeedResult{}, errors.New("down"))
		age.EXPECT().Age(gomock.Any(), gomock.Any()).Return(0, false, errors.New("down"))

		rep := reputation.New(reputation.Options{Feed: feed, Age: age}).Lookup(ctx, "a.example")
		require.Equal(t, &domain.Reputation{}, rep)
	})

	t.Run("ip hosts skip domain age", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		feed := mockreputation.NewMockThreatFeed(ctrl)
		age := mockreputation.NewMockDomainAge(ctrl)
		feed.EXPECT().Lookup(gomock.Any(), "93.184.216.34").Return(reputation.FeedResult{Status: reputation.StatusClean}, nil)

		rep := reputation.New(reputation.Options{Feed: feed, Age: age}).Lookup(ctx, "93.184.216.34")
		require.True(t, rep.FeedChecked)
		require.False(t, rep.AgeKnown)
	})
}

func TestCachedAge(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	next := mockreputation.NewMockDomainAge(ctrl)
	c := cache.New[reputation.AgeRecord](memory.New(), cache.Options{Name: "domain_age", MaxAge: time.Hour, MaxEntries: 10})
	aged := reputation.NewCachedAge(next, c)

	next.EXPECT().Age(gomock.Any(), "example.com").Return(9000, true, nil).Times(1)
	for range 3 {
		days, known, err := aged.Age(ctx, "example.com")
		require.NoError(t, err)
		require.True(t, known)
		require.Equal(t, 9000, days)
	}

	next.EXPECT().Age(gomock.Any(), "flaky.example").Return(0, false, errors.New("timeout")).Times(2)
	for range 2 {
		_, _, err := aged.Age(ctx, "flaky.example")
		require.Error(t, err)
	}
}

func TestRegistrableDomain(t *testing.T) {
	cases := map[string]string{
		"example.com":         "example.com",
		"WWW.Example.COM.":    "example.com",
		"a.b.c.example.co.uk": "example.co.uk",
		"paypal-login.xyz":    "paypal-login.xyz",
		"93.184.216.34":       "",
		"[2001:db8::1]":       "",
		"":                    "",
		"com":                 "",
	}

	for host, want := range cases {
		got, ok := reputation.RegistrableDomain(host)
		require.Equal(t, want != "", ok, host)
		require.Equal(t, want, got, host)
	}
}
