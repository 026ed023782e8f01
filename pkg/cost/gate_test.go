package cost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	castkeep "github.com/castkeep/castkeep/internal"
)

type fakeSource struct {
	post *castkeep.Post
	err  error
}

func (f *fakeSource) Fetch(context.Context, string) (*castkeep.Post, error) {
	return f.post, f.err
}

type failingOracle struct{}

func (failingOracle) Balance(context.Context) (float64, error) {
	return 0, errors.New("billing api down")
}

func mixedPost() *castkeep.Post {
	return &castkeep.Post{
		ID: "0xabc",
		Embeds: []castkeep.Embed{
			{URL: "https://example.com/a.png", Kind: castkeep.EmbedImage},
			{URL: "https://example.com/b.png", Kind: castkeep.EmbedImage},
			{URL: "https://example.com/c.mp4", Kind: castkeep.EmbedVideo},
			{URL: "https://example.com/article", Kind: castkeep.EmbedLink},
		},
	}
}

func TestEstimatePricesEmbeds(t *testing.T) {
	g := New(&fakeSource{post: mixedPost()}, StaticBalance(1), nil)

	est, err := g.Estimate(context.Background(), "0xabc")
	require.NoError(t, err)

	// 2 images + 1 video + storage overhead; the link is free.
	assert.InDelta(t, 0.014, est.MediaCostUSD, 1e-9)
	assert.InDelta(t, 0.005, est.StorageCostUSD, 1e-9)
	assert.InDelta(t, 0.019, est.TotalUSD, 1e-9)
	assert.Equal(t, int64(19), est.CreditsNeeded)
	assert.True(t, est.Affordable)
}

func TestEstimateExactBalanceIsAffordable(t *testing.T) {
	g := New(&fakeSource{post: mixedPost()}, StaticBalance(0.019), nil)

	est, err := g.Estimate(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, est.Affordable)
}

func TestEstimateInsufficientBalance(t *testing.T) {
	g := New(&fakeSource{post: mixedPost()}, StaticBalance(0.01), nil)

	est, err := g.Estimate(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.False(t, est.Affordable)
	require.NotNil(t, est.BalanceUSD)
	assert.InDelta(t, 0.01, *est.BalanceUSD, 1e-9)
}

func TestEstimateFailsClosedWithoutBalance(t *testing.T) {
	for name, oracle := range map[string]BalanceOracle{
		"no oracle":      nil,
		"unset balance":  StaticBalance(-1),
		"oracle failure": failingOracle{},
	} {
		t.Run(name, func(t *testing.T) {
			g := New(&fakeSource{post: mixedPost()}, oracle, nil)
			est, err := g.Estimate(context.Background(), "0xabc")
			require.NoError(t, err)
			assert.False(t, est.Affordable, name)
			assert.Nil(t, est.BalanceUSD)
		})
	}
}

func TestEstimateZeroedOnFetchFailure(t *testing.T) {
	g := New(&fakeSource{err: errors.New("hub down")}, StaticBalance(100), nil)

	est, err := g.Estimate(context.Background(), "0xmissing")
	assert.Error(t, err)
	assert.Equal(t, castkeep.CostEstimate{}, est)
	assert.False(t, est.Affordable)
}

func TestPriceTextOnlyPost(t *testing.T) {
	g := New(&fakeSource{}, nil, nil)
	est := g.Price(&castkeep.Post{ID: "0xtext", Text: "gm"})

	assert.Zero(t, est.MediaCostUSD)
	assert.InDelta(t, 0.005, est.TotalUSD, 1e-9)
	assert.Equal(t, int64(5), est.CreditsNeeded)
}
