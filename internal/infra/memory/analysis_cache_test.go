package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"wrongnote-service/internal/app"
	"wrongnote-service/internal/domain"
)

func TestAnalysisCacheCaches(t *testing.T) {
	analyzer := &countingAnalyzer{
		Analyzer: NewStaticAnalyzer(map[int64]domain.AnalysisResult{
			1: sampleAnalysis(),
		}),
	}
	cache := NewAnalysisCache(analyzer, time.Minute)

	result, err := cache.Analyze(context.Background(), "m1", 1, domain.SourceRegular)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result == nil || result.Analysis != "spent more than planned" {
		t.Fatalf("unexpected result %+v", result)
	}
	if analyzer.calls != 1 {
		t.Fatalf("expected analyzer once, got %d", analyzer.calls)
	}

	if _, err := cache.Analyze(context.Background(), "m1", 1, domain.SourceRegular); err != nil {
		t.Fatalf("analyze 2: %v", err)
	}
	if analyzer.calls != 1 {
		t.Fatalf("expected cache hit, analyzer calls %d", analyzer.calls)
	}

	// Different source is a different key.
	if _, err := cache.Analyze(context.Background(), "m1", 1, domain.SourceConsumption); err != nil {
		t.Fatalf("analyze 3: %v", err)
	}
	if analyzer.calls != 2 {
		t.Fatalf("expected miss for other source, analyzer calls %d", analyzer.calls)
	}
}

func TestAnalysisCacheExpires(t *testing.T) {
	analyzer := &countingAnalyzer{Analyzer: NewStaticAnalyzer(map[int64]domain.AnalysisResult{1: sampleAnalysis()})}
	cache := NewAnalysisCache(analyzer, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	_, _ = cache.Analyze(context.Background(), "m1", 1, domain.SourceRegular)
	now = now.Add(2 * time.Minute)
	_, _ = cache.Analyze(context.Background(), "m1", 1, domain.SourceRegular)
	if analyzer.calls != 2 {
		t.Fatalf("expected expired entry to reload, analyzer calls %d", analyzer.calls)
	}
}

func TestAnalysisCacheEvictsExpiredEntries(t *testing.T) {
	analyzer := &countingAnalyzer{Analyzer: NewStaticAnalyzer(map[int64]domain.AnalysisResult{1: sampleAnalysis()})}
	cache := NewAnalysisCache(analyzer, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	_, _ = cache.Analyze(context.Background(), "m1", 1, domain.SourceRegular)
	now = now.Add(2 * time.Minute)
	if _, ok := cache.lookup("m1:regular:1"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if len(cache.cache) != 0 {
		t.Fatalf("expected expired entry evicted, got %d entries", len(cache.cache))
	}
}

func TestAnalysisCacheWithoutTTLStoresNothing(t *testing.T) {
	analyzer := &countingAnalyzer{Analyzer: NewStaticAnalyzer(map[int64]domain.AnalysisResult{1: sampleAnalysis()})}
	cache := NewAnalysisCache(analyzer, 0)

	for i := int64(1); i <= 3; i++ {
		result, err := cache.Analyze(context.Background(), "m1", 1, domain.SourceRegular)
		if err != nil || result == nil {
			t.Fatalf("expected analysis, got %+v, %v", result, err)
		}
		if analyzer.calls != int(i) {
			t.Fatalf("expected analyzer on every call, got %d", analyzer.calls)
		}
	}
	if len(cache.cache) != 0 {
		t.Fatalf("expected nothing stored, got %d entries", len(cache.cache))
	}
}

func TestAnalysisCacheSkipsAbsentAndErrors(t *testing.T) {
	analyzer := &countingAnalyzer{Analyzer: NewStaticAnalyzer(nil)}
	cache := NewAnalysisCache(analyzer, time.Minute)

	for i := 0; i < 2; i++ {
		result, err := cache.Analyze(context.Background(), "m1", 5, domain.SourceRegular)
		if err != nil || result != nil {
			t.Fatalf("expected absent analysis, got %+v, %v", result, err)
		}
	}
	if analyzer.calls != 2 {
		t.Fatalf("absent results must not be cached, analyzer calls %d", analyzer.calls)
	}

	failing := NewAnalysisCache(&countingAnalyzer{err: errors.New("down")}, time.Minute)
	if _, err := failing.Analyze(context.Background(), "m1", 5, domain.SourceRegular); err == nil {
		t.Fatalf("expected error to propagate")
	}
}

type countingAnalyzer struct {
	app.Analyzer
	calls int
	err   error
}

func (a *countingAnalyzer) Analyze(ctx context.Context, memberID string, problemID int64, source domain.Source) (*domain.AnalysisResult, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.Analyzer.Analyze(ctx, memberID, problemID, source)
}

func sampleAnalysis() domain.AnalysisResult {
	return domain.AnalysisResult{
		Analysis:       "spent more than planned",
		Weakness:       "budgeting",
		Recommendation: "track fixed costs first",
	}
}
