package domain

import "slices"

// Source identifies which quiz subsystem produced a wrong-answer stream.
type Source string

const (
	SourceRegular     Source = "regular"
	SourceConsumption Source = "consumption"
)

// Valid reports whether s is one of the two known sources.
func (s Source) Valid() bool {
	return s == SourceRegular || s == SourceConsumption
}

// ProblemKind is the answer format of a problem.
type ProblemKind string

const (
	KindMultipleChoice ProblemKind = "multiple-choice"
	KindFreeResponse   ProblemKind = "free-response"
)

// MultipleChoiceMode is the quizMode marker the regular quiz engine uses for MCQs.
const MultipleChoiceMode = "MULTIPLE_CHOICE"

// RawAnswer is one wrong submission as produced by a quiz engine.
type RawAnswer struct {
	QuizID        int64  `json:"quizId"`
	Question      string `json:"question"`
	CorrectAnswer string `json:"correctAnswer"`
	UserAnswer    string `json:"userAnswer"`
	CreatedAt     string `json:"createdAt"`
	QuizMode      string `json:"quizMode,omitempty"`
	QuizSubject   string `json:"quizSubject,omitempty"`
}

// AttemptRecord is a single submission for a problem.
type AttemptRecord struct {
	UserAnswer string `json:"userAnswer"`
	CreatedAt  string `json:"createdAt"`
	Correct    bool   `json:"isCorrect"`
}

// Day returns the calendar day portion of CreatedAt.
func (a AttemptRecord) Day() string {
	if len(a.CreatedAt) < 10 {
		return a.CreatedAt
	}
	return a.CreatedAt[:10]
}

// Problem is a quiz question with its wrong attempts collapsed into one entity.
type Problem struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Kind            ProblemKind     `json:"kind"`
	WrongCount      int             `json:"wrongCount"`
	CorrectCount    int             `json:"correctCount"`
	CorrectAnswer   string          `json:"correctAnswer"`
	AnalysisText    string          `json:"analysisText"`
	WeakPoints      []string        `json:"weakPoints"`
	Recommendations []string        `json:"recommendations"`
	AttemptHistory  []AttemptRecord `json:"attemptHistory"`
}

// LatestAnswer is the user answer of the most recent attempt.
func (p Problem) LatestAnswer() string {
	if len(p.AttemptHistory) == 0 {
		return ""
	}
	return p.AttemptHistory[len(p.AttemptHistory)-1].UserAnswer
}

// WithAnalysis returns a copy of p carrying the analysis result.
// p itself, and any slices it shares with other holders, are left untouched.
func (p Problem) WithAnalysis(r AnalysisResult) Problem {
	out := p.clone()
	out.AnalysisText = r.Analysis
	out.WeakPoints = []string{r.Weakness}
	out.Recommendations = []string{r.Recommendation}
	return out
}

func (p Problem) clone() Problem {
	p.WeakPoints = slices.Clone(p.WeakPoints)
	p.Recommendations = slices.Clone(p.Recommendations)
	p.AttemptHistory = slices.Clone(p.AttemptHistory)
	return p
}

// Category is a named partition of problems.
type Category struct {
	ID            int       `json:"id" yaml:"id"`
	Tag           string    `json:"tag" yaml:"tag"`
	Name          string    `json:"name" yaml:"name"`
	TotalProblems int       `json:"totalProblems" yaml:"-"`
	Problems      []Problem `json:"problems" yaml:"-"`
}

// AnalysisResult is the structured payload of an analysis call.
type AnalysisResult struct {
	Analysis       string `json:"analysis"`
	Weakness       string `json:"weakness"`
	Recommendation string `json:"recommendation"`
}
