package app

import (
	"context"

	"wrongnote-service/internal/domain"
)

const noAnswer = "no answer"

// Detail is the right-hand pane for the selected problem.
type Detail struct {
	Problem    domain.Problem    `json:"problem"`
	Phase      Phase             `json:"phase"`
	Error      string            `json:"error,omitempty"`
	Rates      Rates             `json:"rates"`
	History    []HistoryPoint    `json:"history"`
	Comparison *AnswerComparison `json:"comparison,omitempty"`
	Tip        string            `json:"tip,omitempty"`
}

// AnswerComparison contrasts the latest answer with the correct one.
// Consumption problems show it instead of the rate chart.
type AnswerComparison struct {
	LatestAnswer  string `json:"latestAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	WrongCount    int    `json:"wrongCount"`
}

// Detail builds the detail pane of the committed problem.
func (s *Session) Detail(ctx context.Context) (Detail, error) {
	state := s.orchestrator.State()
	if state.Problem == nil || state.SelectedProblemID == nil {
		return Detail{}, domain.ErrProblemNotFound
	}
	problem := *state.Problem
	// one log fetch so rates and history always describe the same attempts
	attempts := s.stats.attempts(ctx, problem)

	detail := Detail{
		Problem: problem,
		Phase:   state.Phase,
		Error:   state.Error,
		Rates:   RatesOf(attempts),
		History: HistoryOf(attempts),
	}
	if state.Source() == domain.SourceConsumption {
		latest := problem.LatestAnswer()
		if latest == "" {
			latest = noAnswer
		}
		detail.Comparison = &AnswerComparison{
			LatestAnswer:  latest,
			CorrectAnswer: problem.CorrectAnswer,
			WrongCount:    problem.WrongCount,
		}
		detail.Tip = StudyTip(problem.ID)
	}
	return detail, nil
}

var studyTips = []string{
	"Start from the basics. Make sure compound interest, inflation and assets versus liabilities are clear before moving on to investment products.",
	"Follow current events through cases. When the base rate changes, work out why markets move and what it means for your own deposits.",
	"Apply what you learn right away. Compare card interest rates, savings rates and loan products yourself.",
	"Summarize key concepts and review them often. A one-line summary next to a real news example sticks better than rereading.",
	"Look for the concepts you studied in real financial news, for example rising rates pushing bond prices down.",
	"Listen to finance content regularly. Podcasts and videos during a commute make the vocabulary familiar without extra effort.",
	"Keep a household ledger. Seeing fixed and variable spending side by side is the best way to feel where money goes.",
	"Study one topic at a time: deposits versus savings today, card interest tomorrow, ETFs the day after.",
	"Try paper trading to get a feel for market movements without risking real money.",
	"Read one personal finance book from cover to cover to give your studies a solid reference point.",
	"Check an economic newspaper or news app every morning. Headlines and summaries are enough to follow the trend.",
}

// StudyTip picks a finance study tip for a consumption problem. The same
// problem always gets the same tip.
func StudyTip(problemID int64) string {
	i := problemID % int64(len(studyTips))
	if i < 0 {
		i = -i
	}
	return studyTips[i]
}
