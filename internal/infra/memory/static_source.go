package memory

import (
	"context"
	"slices"

	"wrongnote-service/internal/domain"
)

// StaticSource serves wrong answers and attempt logs from in-memory tables
// shared by every member (useful for tests/demos).
type StaticSource struct {
	answers map[domain.Source][]domain.RawAnswer
	logs    map[int64][]domain.AttemptRecord
}

func NewStaticSource(answers map[domain.Source][]domain.RawAnswer, logs map[int64][]domain.AttemptRecord) *StaticSource {
	return &StaticSource{answers: answers, logs: logs}
}

func (s *StaticSource) FetchWrongAnswers(_ context.Context, _ string, source domain.Source) ([]domain.RawAnswer, error) {
	return slices.Clone(s.answers[source]), nil
}

func (s *StaticSource) FetchAttemptLog(_ context.Context, _ string, problemID int64) ([]domain.AttemptRecord, error) {
	return slices.Clone(s.logs[problemID]), nil
}
