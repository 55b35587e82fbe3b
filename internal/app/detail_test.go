package app

import (
	"context"
	"errors"
	"testing"

	"wrongnote-service/internal/domain"
)

// sequencedLogs answers each call with the next scripted response.
type sequencedLogs struct {
	responses []logResponse
	calls     int
}

type logResponse struct {
	records []domain.AttemptRecord
	err     error
}

func (s *sequencedLogs) FetchAttemptLog(context.Context, string, int64) ([]domain.AttemptRecord, error) {
	r := s.responses[min(s.calls, len(s.responses)-1)]
	s.calls++
	return r.records, r.err
}

func sessionWithSelection(t *testing.T, tag string, problem domain.Problem, logs AttemptLogFetcher) *Session {
	t.Helper()
	orchestrator := NewAnalysisOrchestrator("m1", tag, nil, nil, 0, quietLogger())
	orchestrator.Apply(BeginAnalysis{Token: 1, Problem: problem})
	if state := orchestrator.Apply(AnalysisResolved{Token: 1, Problem: problem}); state.Phase != PhaseReady {
		t.Fatalf("expected ready state, got %+v", state)
	}
	return NewSession("m1", NewCategoryStore(nil, nil, quietLogger()), orchestrator, NewStatisticsCalculator("m1", logs, quietLogger()))
}

func TestDetailFetchesAttemptLogOnce(t *testing.T) {
	problem := domain.Problem{
		ID:             4,
		WrongCount:     1,
		AttemptHistory: []domain.AttemptRecord{{UserAnswer: "x", CreatedAt: "2024-01-01T00:00:00"}},
	}
	logs := &sequencedLogs{responses: []logResponse{
		{records: []domain.AttemptRecord{
			{UserAnswer: "x", CreatedAt: "2024-01-01T00:00:00"},
			{UserAnswer: "y", CreatedAt: "2024-01-02T00:00:00", Correct: true},
			{UserAnswer: "y", CreatedAt: "2024-01-03T00:00:00", Correct: true},
		}},
		{err: errors.New("log backend down")},
	}}
	session := sessionWithSelection(t, "regular", problem, logs)

	detail, err := session.Detail(context.Background())
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if logs.calls != 1 {
		t.Fatalf("expected one attempt log fetch, got %d", logs.calls)
	}
	if detail.Rates.TotalAttempts != 3 || len(detail.History) != 3 {
		t.Fatalf("rates and history must come from the same attempts, got rates=%+v history=%+v", detail.Rates, detail.History)
	}
	if detail.History[2].Value != 100 || detail.History[2].Date != "2024-01-03" {
		t.Fatalf("unexpected history %+v", detail.History)
	}
}

func TestDetailConsumptionWithoutAnswer(t *testing.T) {
	problem := domain.Problem{ID: 11, CorrectAnswer: "No", WrongCount: 1}
	session := sessionWithSelection(t, "consumption", problem, nil)

	detail, err := session.Detail(context.Background())
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Comparison == nil || detail.Comparison.LatestAnswer != "no answer" {
		t.Fatalf("expected placeholder latest answer, got %+v", detail.Comparison)
	}
	if detail.Tip == "" || detail.Tip != StudyTip(11) {
		t.Fatalf("unexpected tip %q", detail.Tip)
	}
	if detail.Rates != (Rates{}) || len(detail.History) != 0 {
		t.Fatalf("expected zero stats without attempts, got %+v", detail)
	}
}
