package route

import (
	"context"
	"log/slog"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulkyeet/arb-engine/internal/dex"
)

// SearchConfig bounds the graph expansion.
type SearchConfig struct {
	MaxHops          int
	MinLiquidity     *big.Int
	MaxPoolsPerToken int

	// WrappedNative is the token every sell route must end at.
	WrappedNative string

	// Pegged tokens are forced toward the wrapped native even before the
	// last hop, since a direct pool always exists for them.
	Pegged map[string]bool
}

// PathFinder enumerates bounded-hop sell routes from a token back to the
// wrapped native asset.
type PathFinder struct {
	index dex.Index
	cfg   SearchConfig
	log   *slog.Logger
}

func NewPathFinder(index dex.Index, cfg SearchConfig, log *slog.Logger) *PathFinder {
	if cfg.Pegged == nil {
		cfg.Pegged = map[string]bool{}
	}
	return &PathFinder{index: index, cfg: cfg, log: log}
}

// FindSellRoutes expands a BFS frontier hop by hop, then walks the
// collected adjacency with a DFS to enumerate concrete routes. Selling
// the wrapped native itself needs no hops at all.
func (f *PathFinder) FindSellRoutes(ctx context.Context, token string) ([]Route, error) {
	token = dex.NormalizeTokenString(token)
	if f.isTerminal(token) {
		return []Route{{}}, nil
	}

	hops := make(map[string][]dex.Venue)
	stack := []string{token}
	visited := make(map[string]bool)
	visitedPools := make(map[common.Address]bool)

	for nthHop := 0; nthHop < f.cfg.MaxHops; nthHop++ {
		isLastHop := nthHop == f.cfg.MaxHops-1
		var newStack []string

		for len(stack) > 0 {
			tokenAddr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if visited[tokenAddr] || f.isTerminal(tokenAddr) {
				continue
			}
			visited[tokenAddr] = true

			target := ""
			if f.cfg.Pegged[tokenAddr] || isLastHop {
				target = f.cfg.WrappedNative
			}

			venues, err := f.index.VenuesFor(ctx, tokenAddr, target)
			if err != nil {
				f.log.Debug("index lookup failed", "token", tokenAddr, "err", err)
				continue
			}

			venues = f.prune(venues, visitedPools)
			if len(venues) == 0 {
				continue
			}

			for _, venue := range venues {
				out := venue.TokenOut()
				if !visited[out] {
					newStack = append(newStack, out)
				}
				visitedPools[venue.PoolAddress()] = true
			}
			hops[tokenAddr] = venues
		}

		if isLastHop {
			break
		}
		stack = newStack
	}

	var routes []Route
	f.dfs(token, nil, hops, &routes)
	return routes, nil
}

// FindBuyRoutes derives buy routes by reversing the sell routes.
func (f *PathFinder) FindBuyRoutes(ctx context.Context, token string) ([]Route, error) {
	sells, err := f.FindSellRoutes(ctx, token)
	if err != nil {
		return nil, err
	}

	buys := make([]Route, len(sells))
	for i, r := range sells {
		buys[i] = r.Reversed()
	}
	return buys, nil
}

func (f *PathFinder) isTerminal(token string) bool {
	return token == f.cfg.WrappedNative || dex.IsNative(token)
}

// prune drops thin pools and, when a token still has too many, prefers
// pools not already used in this search and keeps the deepest ones.
func (f *PathFinder) prune(venues []dex.Venue, visitedPools map[common.Address]bool) []dex.Venue {
	kept := venues[:0]
	for _, v := range venues {
		if f.cfg.MinLiquidity != nil && v.Liquidity().Cmp(f.cfg.MinLiquidity) < 0 {
			continue
		}
		kept = append(kept, v)
	}

	if len(kept) > f.cfg.MaxPoolsPerToken {
		fresh := kept[:0]
		for _, v := range kept {
			if !visitedPools[v.PoolAddress()] {
				fresh = append(fresh, v)
			}
		}
		kept = fresh

		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Liquidity().Cmp(kept[j].Liquidity()) > 0
		})
		if len(kept) > f.cfg.MaxPoolsPerToken {
			kept = kept[:f.cfg.MaxPoolsPerToken]
		}
	}

	return kept
}

func (f *PathFinder) dfs(token string, path []dex.Venue, hops map[string][]dex.Venue, routes *[]Route) {
	if f.isTerminal(token) {
		*routes = append(*routes, Route{Hops: append([]dex.Venue(nil), path...)})
		return
	}
	if len(path) >= f.cfg.MaxHops {
		return
	}

	venues, ok := hops[token]
	if !ok {
		return
	}

	for _, venue := range venues {
		if pathUsesPool(path, venue.PoolAddress()) {
			continue
		}
		path = append(path, venue)
		f.dfs(venue.TokenOut(), path, hops, routes)
		path = path[:len(path)-1]
	}
}

func pathUsesPool(path []dex.Venue, addr common.Address) bool {
	for _, hop := range path {
		if hop.PoolAddress() == addr {
			return true
		}
	}
	return false
}
