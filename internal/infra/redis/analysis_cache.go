package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"wrongnote-service/internal/app"
	"wrongnote-service/internal/domain"
)

const (
	fieldAnalysis       = "analysis"
	fieldWeakness       = "weakness"
	fieldRecommendation = "recommendation"
)

// AnalysisCache caches complete analysis results in Redis (hash per problem)
// and falls back to the wrapped analyzer on cache miss.
// Results are stored as: HSET analysis:{member}:{source}:{problemID} analysis .. weakness .. recommendation ..
type AnalysisCache struct {
	client   *redis.Client
	analyzer app.Analyzer
	ttl      time.Duration
	sf       singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewAnalysisCache(client *redis.Client, analyzer app.Analyzer, ttl time.Duration) *AnalysisCache {
	return &AnalysisCache{
		client:   client,
		analyzer: analyzer,
		ttl:      ttl,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *AnalysisCache) Analyze(ctx context.Context, memberID string, problemID int64, source domain.Source) (*domain.AnalysisResult, error) {
	key := c.key(memberID, source, problemID)

	if result, ok := c.lookup(ctx, key); ok {
		return result, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if result, ok := c.lookup(ctx, key); ok {
			return result, nil
		}

		result, err := c.analyzer.Analyze(ctx, memberID, problemID, source)
		if err != nil || result == nil {
			return result, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key,
			fieldAnalysis, result.Analysis,
			fieldWeakness, result.Weakness,
			fieldRecommendation, result.Recommendation,
		)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// best-effort; a failed write only costs a later miss
		_, _ = pipe.Exec(ctx)

		return result, nil
	})
	if err != nil {
		return nil, err
	}
	result, _ := v.(*domain.AnalysisResult)
	return result, nil
}

// lookup reports a hit only when all three fields are cached.
func (c *AnalysisCache) lookup(ctx context.Context, key string) (*domain.AnalysisResult, bool) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	analysis, ok1 := fields[fieldAnalysis]
	weakness, ok2 := fields[fieldWeakness]
	recommendation, ok3 := fields[fieldRecommendation]
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	return &domain.AnalysisResult{
		Analysis:       analysis,
		Weakness:       weakness,
		Recommendation: recommendation,
	}, true
}

func (c *AnalysisCache) key(memberID string, source domain.Source, problemID int64) string {
	return "analysis:" + memberID + ":" + string(source) + ":" + strconv.FormatInt(problemID, 10)
}

func (c *AnalysisCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
