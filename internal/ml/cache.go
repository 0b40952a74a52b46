package ml

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// CachedScorer memoizes a remote scorer's replies by batch content. Backtests
// replay the same races repeatedly, so identical batches are common.
type CachedScorer struct {
	scorer Scorer
	cache  *cache.Cache
}

// NewCachedScorer wraps scorer with a TTL cache
func NewCachedScorer(scorer Scorer, ttl time.Duration) *CachedScorer {
	return &CachedScorer{
		scorer: scorer,
		cache:  cache.New(ttl, ttl*2),
	}
}

// Name returns the wrapped model name
func (c *CachedScorer) Name() string { return c.scorer.Name() }

// Kind returns the wrapped scorer kind
func (c *CachedScorer) Kind() string { return kindOf(c.scorer) }

// Score returns the cached scores for an identical batch or calls through
func (c *CachedScorer) Score(ctx context.Context, rows [][]float64) ([]float64, error) {
	key := batchKey(rows)
	if cached, found := c.cache.Get(key); found {
		ScorerCacheTotal.WithLabelValues(c.Name(), "true").Inc()
		return append([]float64(nil), cached.([]float64)...), nil
	}

	ScorerCacheTotal.WithLabelValues(c.Name(), "false").Inc()
	scores, err := c.scorer.Score(ctx, rows)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, append([]float64(nil), scores...))
	return scores, nil
}

// Flush drops every cached batch
func (c *CachedScorer) Flush() {
	c.cache.Flush()
}

// Close closes the wrapped scorer if it holds resources
func (c *CachedScorer) Close() error {
	if closer, ok := c.scorer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func batchKey(rows [][]float64) string {
	h := sha256.New()
	var buf [8]byte
	for _, row := range rows {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(row)))
		h.Write(buf[:])
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
