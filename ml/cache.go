package ml

import (
	"errors"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedPredictor memoizes successful predictions. Keys include the bundle id,
// so entries never outlive the artifacts that produced them. Failures are
// never cached.
type CachedPredictor struct {
	*Predictor
	cache  *lru.Cache[string, Prediction]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewCachedPredictor(p *Predictor, size int) (*CachedPredictor, error) {
	if p == nil {
		return nil, errors.New("predictor is nil")
	}
	cache, err := lru.New[string, Prediction](size)
	if err != nil {
		return nil, err
	}
	return &CachedPredictor{Predictor: p, cache: cache}, nil
}

func (c *CachedPredictor) Predict(in Input) (Prediction, error) {
	if !c.Available() {
		return Prediction{}, ErrModelUnavailable
	}
	key := c.key(in)
	if pred, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return pred, nil
	}
	c.misses.Add(1)
	pred, err := c.Predictor.Predict(in)
	if err != nil {
		return Prediction{}, err
	}
	c.cache.Add(key, pred)
	return pred, nil
}

// Stats returns cumulative cache hits and misses.
func (c *CachedPredictor) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *CachedPredictor) Len() int {
	return c.cache.Len()
}

func (c *CachedPredictor) key(in Input) string {
	var b strings.Builder
	b.WriteString(c.bundle.Manifest.BundleID)
	for _, m := range in.Measurements.named() {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(m.value, 'g', -1, 64))
	}
	for _, s := range []string{in.Crop, in.Region, in.Month} {
		b.WriteByte('|')
		b.WriteString(Normalize(s))
	}
	return b.String()
}
