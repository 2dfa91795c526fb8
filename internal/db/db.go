package db

import (
	"context"
	"time"
)

// Store is the index-engine facade. Consumers depend on the narrow
// sub-interfaces, not on Store itself.
type Store interface {
	Pinger
	KVStore
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks engine connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides the simple key-value operations the response cache sits
// on.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Searcher provides query operations over the search index.
type Searcher interface {
	Search(ctx context.Context, q *SearchQuery) (*SearchResult, error)
	CursorSearch(ctx context.Context, q *CursorQuery) (*SearchResult, error)
	Facet(ctx context.Context, q *FacetQuery) (*FacetResult, error)
	RangeFacet(ctx context.Context, q *RangeFacetQuery) (*FacetResult, error)
	Stats(ctx context.Context, q *StatsQuery) (*FieldStats, error)
}
