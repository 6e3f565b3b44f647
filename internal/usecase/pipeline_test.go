package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AdSweeper/internal/domain"
)

type fakeDirectory struct {
	accounts []domain.Account
	err      error
	calls    int
}

func (f *fakeDirectory) FetchAccounts(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.Account, error) {
	f.calls++
	return f.accounts, f.err
}

func newTestPipeline(platform *fakePlatform, directory *fakeDirectory, static []domain.Account) *Pipeline {
	return NewPipeline(PipelineDeps{
		Directory:   directory,
		Platform:    platform,
		Credentials: testResolver(),
		Executor: NewExecutor(ExecutorDeps{
			Platform: platform,
			Logger:   quietLogger(),
		}),
		StaticAccounts: static,
		AliasWhitelist: []string{"红姐"},
		WindowStart:    50 * time.Minute,
		WindowEnd:      30 * time.Minute,
		Logger:         quietLogger(),
	})
}

func TestSweepProcessesAccountEndToEnd(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{
		ads: []domain.Ad{
			{ID: "p1", Title: "春天-红姐", CreatedAt: day(1)},
			{ID: "p2", Title: "春天-红姐", CreatedAt: day(2)},
		},
		materials: []domain.Material{
			rejected("m1", "p2", domain.RejectReasonActionable),
		},
	}
	pipeline := newTestPipeline(platform, nil, []domain.Account{{ID: "1790001", DramaName: "春天"}})

	require.NoError(t, pipeline.Sweep(context.Background(), NewEpoch()))
	assert.Equal(t, []string{
		"list_ads",
		"list_materials p2",
		"delete_ad p2",
	}, platform.calls)
}

func TestSweepSkipsAccountWithNoSelectedAds(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{
		ads: []domain.Ad{{ID: "p1", Title: "别的剧-红姐", CreatedAt: day(1)}},
	}
	pipeline := newTestPipeline(platform, nil, []domain.Account{{ID: "1", DramaName: "春天"}})

	require.NoError(t, pipeline.Sweep(context.Background(), NewEpoch()))
	assert.Equal(t, []string{"list_ads"}, platform.calls)
}

func TestSweepPendingReviewGateSkipsRemediation(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{
		ads: []domain.Ad{{ID: "p1", Title: "春天-红姐", CreatedAt: day(1)}},
		materials: []domain.Material{
			rejected("m1", "p1", domain.RejectReasonActionable),
			{ID: "m2", AdID: "p1", StatusSecondary: []string{domain.StatusPendingReview}},
		},
	}
	pipeline := newTestPipeline(platform, nil, []domain.Account{{ID: "1", DramaName: "春天"}})

	require.NoError(t, pipeline.Sweep(context.Background(), NewEpoch()))
	assert.Equal(t, []string{"list_ads", "list_materials p1"}, platform.calls)
}

func TestSweepSkipsHandledAccountsWithinEpoch(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{
		ads: []domain.Ad{{ID: "p1", Title: "春天-红姐", CreatedAt: day(1)}},
	}
	accounts := []domain.Account{
		{ID: "1", DramaName: "春天"},
		{ID: "2", DramaName: "春天"},
	}
	pipeline := newTestPipeline(platform, nil, accounts)

	epoch := NewEpoch()
	epoch.Begin([]string{"1", "2"})
	epoch.MarkHandled("1")

	require.NoError(t, pipeline.Sweep(context.Background(), epoch))
	assert.Equal(t, []string{"list_ads"}, platform.calls, "only the unhandled account is fetched")
	assert.True(t, epoch.Handled("2"))
}

func TestSweepUsesDirectoryWhenNoStaticAccounts(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{}
	directory := &fakeDirectory{accounts: []domain.Account{{ID: "1", DramaName: "春天"}}}
	pipeline := newTestPipeline(platform, directory, nil)

	require.NoError(t, pipeline.Sweep(context.Background(), NewEpoch()))
	assert.Equal(t, 1, directory.calls)
	assert.Equal(t, []string{"list_ads"}, platform.calls)
}

func TestSweepPropagatesDirectoryFailure(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{err: errors.New("directory down")}
	pipeline := newTestPipeline(&fakePlatform{}, directory, nil)

	err := pipeline.Sweep(context.Background(), NewEpoch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load accounts")
}

func TestSweepAccountFailureAbortsRunButKeepsMarks(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{
		ads:     []domain.Ad{{ID: "p1", Title: "春天-红姐", CreatedAt: day(1)}},
		failing: map[string]error{"list_materials p1": errors.New("boom")},
	}
	accounts := []domain.Account{
		{ID: "1", DramaName: "别的剧"}, // selects nothing, succeeds
		{ID: "2", DramaName: "春天"},  // fails on material fetch
	}
	pipeline := newTestPipeline(platform, nil, accounts)

	epoch := NewEpoch()
	err := pipeline.Sweep(context.Background(), epoch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account 2")
	assert.True(t, epoch.Handled("1"))
	assert.False(t, epoch.Handled("2"))
}

func TestSweepCredentialFailureAbortsAccount(t *testing.T) {
	t.Parallel()

	pipeline := newTestPipeline(&fakePlatform{}, nil, []domain.Account{
		{ID: "1", DramaName: "春天", Subject: "未知主体"},
	})

	err := pipeline.Sweep(context.Background(), NewEpoch())
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSweepNoAccountsIsNoop(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{}
	pipeline := newTestPipeline(&fakePlatform{}, directory, nil)

	require.NoError(t, pipeline.Sweep(context.Background(), NewEpoch()))
	assert.Equal(t, 1, directory.calls)
}
