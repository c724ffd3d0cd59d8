package dex

import (
	"context"
	"fmt"
)

// StoreIndex serves the route search straight from the sqlite pool store.
type StoreIndex struct {
	store *Store
}

func NewStoreIndex(store *Store) *StoreIndex {
	return &StoreIndex{store: store}
}

func (i *StoreIndex) VenuesFor(ctx context.Context, tokenIn, tokenOut string) ([]Venue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokenIn = NormalizeTokenString(tokenIn)
	tokenOut = NormalizeTokenString(tokenOut)

	pairs, err := i.store.PoolsByToken(tokenIn)
	if err != nil {
		return nil, fmt.Errorf("pools for %s: %w", tokenIn, err)
	}

	venues := make([]Venue, 0, len(pairs))
	for _, pair := range pairs {
		venue, ok := VenuesSelling(pair, tokenIn)
		if !ok {
			continue
		}
		if tokenOut != "" && venue.TokenOut() != tokenOut {
			continue
		}
		venues = append(venues, venue)
	}
	return venues, nil
}
