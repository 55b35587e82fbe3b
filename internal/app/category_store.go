package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"wrongnote-service/internal/domain"
)

// Identifiers of the two categories synthesized from the wrong-answer streams.
const (
	RegularCategoryID     = 901
	ConsumptionCategoryID = 900
)

var categoryNames = map[domain.Source]string{
	domain.SourceRegular:     "Quiz wrong answers",
	domain.SourceConsumption: "Consumption quiz wrong answers",
}

// CategoryStore holds the regular and consumption categories next to any
// statically configured ones. Each synthesized slot is written only by its
// own load pipeline and always replaced as a whole value, so readers never
// see a partially built category.
type CategoryStore struct {
	fetcher WrongAnswerFetcher
	static  []domain.Category
	logger  *slog.Logger

	regular     atomic.Pointer[domain.Category]
	consumption atomic.Pointer[domain.Category]
}

// NewCategoryStore creates a store; static categories are passed through as-is.
func NewCategoryStore(fetcher WrongAnswerFetcher, static []domain.Category, logger *slog.Logger) *CategoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryStore{
		fetcher: fetcher,
		static:  slices.Clone(static),
		logger:  logger,
	}
}

// Load fetches both streams concurrently. A failing stream leaves its own
// category empty and never affects the other one; the joined error is only
// informational.
func (s *CategoryStore) Load(ctx context.Context, memberID string) error {
	var regularErr, consumptionErr error
	var g errgroup.Group
	g.Go(func() error {
		regularErr = s.LoadSource(ctx, memberID, domain.SourceRegular)
		return nil
	})
	g.Go(func() error {
		consumptionErr = s.LoadSource(ctx, memberID, domain.SourceConsumption)
		return nil
	})
	_ = g.Wait()
	return errors.Join(regularErr, consumptionErr)
}

// LoadSource runs one fetch-and-aggregate pipeline.
func (s *CategoryStore) LoadSource(ctx context.Context, memberID string, source domain.Source) error {
	slot := s.slot(source)
	if slot == nil {
		return fmt.Errorf("unknown source %q", source)
	}

	records, err := s.fetcher.FetchWrongAnswers(ctx, memberID, source)
	if err != nil {
		s.logger.Error("wrong answer fetch failed",
			"member_id", memberID,
			"source", source,
			"error", err,
		)
		slot.Store(newCategory(source, []domain.Problem{}))
		return fmt.Errorf("%w: %s: %w", domain.ErrFetchFailed, source, err)
	}

	problems := GroupAnswers(records, source == domain.SourceRegular)
	slot.Store(newCategory(source, problems))
	return nil
}

func newCategory(source domain.Source, problems []domain.Problem) *domain.Category {
	id := RegularCategoryID
	if source == domain.SourceConsumption {
		id = ConsumptionCategoryID
	}
	return &domain.Category{
		ID:            id,
		Tag:           string(source),
		Name:          categoryNames[source],
		TotalProblems: len(problems),
		Problems:      problems,
	}
}

func (s *CategoryStore) slot(source domain.Source) *atomic.Pointer[domain.Category] {
	switch source {
	case domain.SourceRegular:
		return &s.regular
	case domain.SourceConsumption:
		return &s.consumption
	}
	return nil
}

// AllCategories returns the static categories followed by whichever of
// regular and consumption have finished loading.
func (s *CategoryStore) AllCategories() []domain.Category {
	all := slices.Clone(s.static)
	if c := s.regular.Load(); c != nil {
		all = append(all, *c)
	}
	if c := s.consumption.Load(); c != nil {
		all = append(all, *c)
	}
	return all
}

// CurrentCategory looks a category up by tag, synthesized tags first.
func (s *CategoryStore) CurrentCategory(tag string) (domain.Category, bool) {
	switch tag {
	case string(domain.SourceRegular):
		return loaded(s.regular.Load())
	case string(domain.SourceConsumption):
		return loaded(s.consumption.Load())
	}
	for _, c := range s.static {
		if c.Tag == tag {
			return c, true
		}
	}
	return domain.Category{}, false
}

// DefaultTag is the category selected when a session opens.
func (s *CategoryStore) DefaultTag() string {
	if len(s.static) > 0 {
		return s.static[0].Tag
	}
	return string(domain.SourceConsumption)
}

func loaded(c *domain.Category) (domain.Category, bool) {
	if c == nil {
		return domain.Category{}, false
	}
	return *c, true
}
