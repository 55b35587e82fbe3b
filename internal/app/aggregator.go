package app

import (
	"fmt"

	"wrongnote-service/internal/domain"
)

// orderedProblems groups answers by quiz id while remembering the order in
// which each id was first seen.
type orderedProblems struct {
	index map[int64]int
	items []groupedAnswers
}

type groupedAnswers struct {
	first    domain.RawAnswer
	attempts []domain.AttemptRecord
}

func newOrderedProblems(capacity int) *orderedProblems {
	return &orderedProblems{
		index: make(map[int64]int, capacity),
		items: make([]groupedAnswers, 0, capacity),
	}
}

func (o *orderedProblems) add(rec domain.RawAnswer) {
	attempt := domain.AttemptRecord{UserAnswer: rec.UserAnswer, CreatedAt: rec.CreatedAt}
	if i, ok := o.index[rec.QuizID]; ok {
		o.items[i].attempts = append(o.items[i].attempts, attempt)
		return
	}
	o.index[rec.QuizID] = len(o.items)
	o.items = append(o.items, groupedAnswers{first: rec, attempts: []domain.AttemptRecord{attempt}})
}

// GroupAnswers collapses wrong-answer records into one Problem per quiz id.
// Problems keep the order of each id's first occurrence and attempts keep
// arrival order; identical attempts are not de-duplicated.
func GroupAnswers(records []domain.RawAnswer, regular bool) []domain.Problem {
	grouped := newOrderedProblems(len(records))
	for _, rec := range records {
		grouped.add(rec)
	}

	problems := make([]domain.Problem, 0, len(grouped.items))
	for _, g := range grouped.items {
		problems = append(problems, toProblem(g, regular))
	}
	return problems
}

func toProblem(g groupedAnswers, regular bool) domain.Problem {
	latest := g.attempts[len(g.attempts)-1]
	return domain.Problem{
		ID:              g.first.QuizID,
		Title:           g.first.Question,
		Kind:            problemKind(g.first.QuizMode, regular),
		WrongCount:      len(g.attempts),
		CorrectCount:    0,
		CorrectAnswer:   g.first.CorrectAnswer,
		AnalysisText:    summarize(g.first, latest, regular),
		WeakPoints:      []string{},
		Recommendations: []string{},
		AttemptHistory:  g.attempts,
	}
}

// Consumption quizzes are always multiple choice.
func problemKind(mode string, regular bool) domain.ProblemKind {
	if regular && mode != domain.MultipleChoiceMode {
		return domain.KindFreeResponse
	}
	return domain.KindMultipleChoice
}

func summarize(first domain.RawAnswer, latest domain.AttemptRecord, regular bool) string {
	if regular && first.QuizSubject != "" {
		return fmt.Sprintf("Subject: %s, Correct answer: %s, Latest answer: %s", first.QuizSubject, first.CorrectAnswer, latest.UserAnswer)
	}
	return fmt.Sprintf("Correct answer: %s, Latest answer: %s", first.CorrectAnswer, latest.UserAnswer)
}
