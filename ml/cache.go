package ml

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

type prediction struct {
	label      int
	confidence float64
}

// CachedModel memoizes predictions of a deterministic model by exact input.
// Errors are not cached.
type CachedModel struct {
	model  Model
	cache  *lru.Cache[string, prediction]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewCachedModel(model Model, size int) (*CachedModel, error) {
	cache, err := lru.New[string, prediction](size)
	if err != nil {
		return nil, err
	}
	return &CachedModel{model: model, cache: cache}, nil
}

func (c *CachedModel) Predict(features []float64) (int, float64, error) {
	key := cacheKey(features)
	if p, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return p.label, p.confidence, nil
	}
	c.misses.Add(1)

	label, confidence, err := c.model.Predict(features)
	if err != nil {
		return 0, 0, err
	}
	c.cache.Add(key, prediction{label: label, confidence: confidence})
	return label, confidence, nil
}

// Stats returns cache hit and miss counts.
func (c *CachedModel) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *CachedModel) Len() int {
	return c.cache.Len()
}

func (c *CachedModel) Purge() {
	c.cache.Purge()
}

// cacheKey uses the IEEE bits so 0 and -0 or distinct NaNs never collide
// with each other.
func cacheKey(features []float64) string {
	var b strings.Builder
	b.Grow(len(features) * 17)
	for i, f := range features {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.FormatUint(math.Float64bits(f), 16))
	}
	return b.String()
}
