// Package cost answers "can we afford to preserve this cast" before any
// expensive work starts. The gate fails closed: no balance, or any failure
// while estimating, means not affordable.
package cost

import (
	"context"
	"fmt"
	"math"

	castkeep "github.com/castkeep/castkeep/internal"
)

// CastSource fetches the post an estimate is about.
type CastSource interface {
	Fetch(ctx context.Context, castID string) (*castkeep.Post, error)
}

// BalanceOracle reports the available balance in USD.
type BalanceOracle interface {
	Balance(ctx context.Context) (float64, error)
}

// StaticBalance is a BalanceOracle with a fixed value, used when the
// balance comes from configuration. A negative value means unknown.
type StaticBalance float64

// Balance returns the configured balance.
func (b StaticBalance) Balance(context.Context) (float64, error) {
	if b < 0 {
		return 0, fmt.Errorf("balance not configured")
	}
	return float64(b), nil
}

// Rates holds the unit costs of preservation.
type Rates struct {
	PerImageUSD        float64
	PerVideoUSD        float64
	StorageOverheadUSD float64
	CreditsPerUSD      float64
}

// Defaults sets default values for the Rates.
func (r *Rates) Defaults() *Rates {
	ret := r
	if ret == nil {
		ret = &Rates{}
	}
	if ret.PerImageUSD == 0 {
		ret.PerImageUSD = 0.002
	}
	if ret.PerVideoUSD == 0 {
		ret.PerVideoUSD = 0.01
	}
	if ret.StorageOverheadUSD == 0 {
		ret.StorageOverheadUSD = 0.005
	}
	if ret.CreditsPerUSD == 0 {
		ret.CreditsPerUSD = 1000
	}
	return ret
}

// Gate estimates the cost of backing up a cast and gates on affordability.
type Gate struct {
	src    CastSource
	oracle BalanceOracle
	rates  *Rates
}

// New creates a Gate. The oracle may be nil, in which case every estimate
// is unaffordable.
func New(src CastSource, oracle BalanceOracle, rates *Rates) *Gate {
	return &Gate{src: src, oracle: oracle, rates: rates.Defaults()}
}

// Estimate prices the preservation of one cast against the available
// balance. Any failure along the way returns a zeroed, unaffordable
// estimate along with the cause.
func (g *Gate) Estimate(ctx context.Context, castID string) (castkeep.CostEstimate, error) {
	post, err := g.src.Fetch(ctx, castID)
	if err != nil {
		return castkeep.CostEstimate{}, fmt.Errorf("failed to price cast %s: %w", castID, err)
	}

	est := g.Price(post)

	if g.oracle == nil {
		return est, nil
	}
	balance, err := g.oracle.Balance(ctx)
	if err != nil {
		return est, nil
	}
	est.BalanceUSD = &balance
	// Exactly-enough balance is affordable.
	est.Affordable = balance >= est.TotalUSD
	return est, nil
}

// Price computes the estimate for an already-fetched post, without an
// affordability verdict.
func (g *Gate) Price(post *castkeep.Post) castkeep.CostEstimate {
	var media float64
	for _, embed := range post.Embeds {
		switch embed.Kind {
		case castkeep.EmbedImage, castkeep.EmbedFrame:
			// A frame costs its preserved image.
			media += g.rates.PerImageUSD
		case castkeep.EmbedVideo, castkeep.EmbedGif:
			media += g.rates.PerVideoUSD
		}
	}
	total := media + g.rates.StorageOverheadUSD
	return castkeep.CostEstimate{
		MediaCostUSD:   media,
		StorageCostUSD: g.rates.StorageOverheadUSD,
		TotalUSD:       total,
		CreditsNeeded:  int64(math.Ceil(total * g.rates.CreditsPerUSD)),
		Affordable:     false,
	}
}
