package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"wrongnote-service/internal/app"
	"wrongnote-service/internal/domain"
)

// AnalysisCache keeps complete analysis results for a TTL so reselecting a
// problem does not hit the analysis backend again. Absent results and
// errors are never cached.
type AnalysisCache struct {
	analyzer app.Analyzer
	ttl      time.Duration
	clock    func() time.Time
	sf       singleflight.Group
	rnd      *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedAnalysis
}

type cachedAnalysis struct {
	result    domain.AnalysisResult
	expiresAt time.Time
}

func NewAnalysisCache(analyzer app.Analyzer, ttl time.Duration) *AnalysisCache {
	return &AnalysisCache{
		analyzer: analyzer,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedAnalysis),
	}
}

func (c *AnalysisCache) Analyze(ctx context.Context, memberID string, problemID int64, source domain.Source) (*domain.AnalysisResult, error) {
	key := fmt.Sprintf("%s:%s:%d", memberID, source, problemID)
	if result, ok := c.lookup(key); ok {
		return result, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if result, ok := c.lookup(key); ok {
			return result, nil
		}

		result, err := c.analyzer.Analyze(ctx, memberID, problemID, source)
		if err != nil || result == nil || c.ttl <= 0 {
			return result, err
		}

		expiresAt := c.clock().Add(c.ttlWithJitter())
		c.mu.Lock()
		c.cache[key] = cachedAnalysis{result: *result, expiresAt: expiresAt}
		c.mu.Unlock()
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	result, _ := v.(*domain.AnalysisResult)
	return result, nil
}

func (c *AnalysisCache) lookup(key string) (*domain.AnalysisResult, bool) {
	now := c.clock()
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.After(now) {
		c.mu.Lock()
		// a concurrent fill may have replaced the stale entry
		if current, ok := c.cache[key]; ok && !current.expiresAt.After(now) {
			delete(c.cache, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	result := entry.result
	return &result, true
}

func (c *AnalysisCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticAnalyzer answers from a fixed table keyed by problem id; unknown
// problems have no analysis. Useful for demos and tests.
type StaticAnalyzer struct {
	results map[int64]domain.AnalysisResult
}

func NewStaticAnalyzer(results map[int64]domain.AnalysisResult) *StaticAnalyzer {
	return &StaticAnalyzer{results: results}
}

func (a *StaticAnalyzer) Analyze(_ context.Context, _ string, problemID int64, _ domain.Source) (*domain.AnalysisResult, error) {
	result, ok := a.results[problemID]
	if !ok {
		return nil, nil
	}
	return &result, nil
}
