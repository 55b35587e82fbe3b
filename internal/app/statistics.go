package app

import (
	"context"
	"log/slog"

	"wrongnote-service/internal/domain"
)

// Rates is the correctness breakdown of a problem. Rates are percentages.
type Rates struct {
	CorrectRate     float64 `json:"correctRate"`
	WrongRate       float64 `json:"wrongRate"`
	TotalAttempts   int     `json:"totalAttempts"`
	CorrectAttempts int     `json:"correctAttempts"`
}

// HistoryPoint is one attempt on the history chart: 100 for correct, 0 for wrong.
type HistoryPoint struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// StatisticsCalculator derives display statistics for a problem, preferring
// the live quiz log and falling back to the aggregated attempt history.
type StatisticsCalculator struct {
	memberID string
	logs     AttemptLogFetcher
	logger   *slog.Logger
}

// NewStatisticsCalculator creates a calculator. logs may be nil, in which case
// only the aggregated history is used.
func NewStatisticsCalculator(memberID string, logs AttemptLogFetcher, logger *slog.Logger) *StatisticsCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatisticsCalculator{memberID: memberID, logs: logs, logger: logger}
}

// Rates computes the correctness rates of problem.
func (c *StatisticsCalculator) Rates(ctx context.Context, problem domain.Problem) Rates {
	return RatesOf(c.attempts(ctx, problem))
}

// History returns the per-attempt series of problem.
func (c *StatisticsCalculator) History(ctx context.Context, problem domain.Problem) []HistoryPoint {
	return HistoryOf(c.attempts(ctx, problem))
}

func (c *StatisticsCalculator) attempts(ctx context.Context, problem domain.Problem) []domain.AttemptRecord {
	if c.logs == nil {
		return problem.AttemptHistory
	}
	log, err := c.logs.FetchAttemptLog(ctx, c.memberID, problem.ID)
	if err != nil {
		c.logger.Warn("attempt log unavailable, using aggregated history",
			"member_id", c.memberID,
			"problem_id", problem.ID,
			"error", err,
		)
		return problem.AttemptHistory
	}
	if len(log) == 0 {
		return problem.AttemptHistory
	}
	return log
}

// RatesOf computes rates over attempts. No attempts yields all zeros.
func RatesOf(attempts []domain.AttemptRecord) Rates {
	total := len(attempts)
	if total == 0 {
		return Rates{}
	}
	correct := 0
	for _, a := range attempts {
		if a.Correct {
			correct++
		}
	}
	rate := 100 * float64(correct) / float64(total)
	return Rates{
		CorrectRate:     rate,
		WrongRate:       100 - rate,
		TotalAttempts:   total,
		CorrectAttempts: correct,
	}
}

// HistoryOf maps attempts to chart points in their original order.
func HistoryOf(attempts []domain.AttemptRecord) []HistoryPoint {
	points := make([]HistoryPoint, 0, len(attempts))
	for _, a := range attempts {
		value := 0
		if a.Correct {
			value = 100
		}
		points = append(points, HistoryPoint{Date: a.Day(), Value: value})
	}
	return points
}
