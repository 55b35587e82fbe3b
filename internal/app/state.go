package app

import "wrongnote-service/internal/domain"

// Phase is the analysis phase of a note session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAnalyzing Phase = "analyzing"
	PhaseReady     Phase = "ready"
	PhaseFailed    Phase = "failed"
)

// State is the whole selection state of one note session. It only changes
// through Transition.
//
// While a request is in flight AnalyzingProblemID is set and
// SelectedProblemID is nil; committed results only ever show up under
// SelectedProblemID.
type State struct {
	CategoryTag        string          `json:"categoryTag"`
	Page               int             `json:"page"`
	Phase              Phase           `json:"phase"`
	SelectedProblemID  *int64          `json:"selectedProblemId"`
	AnalyzingProblemID *int64          `json:"analyzingProblemId"`
	Problem            *domain.Problem `json:"problem,omitempty"`
	Error              string          `json:"error,omitempty"`

	request uint64
}

// NewState returns the initial state for a category.
func NewState(categoryTag string) State {
	return State{CategoryTag: categoryTag, Page: 1, Phase: PhaseIdle}
}

// Source picks the analysis endpoint family for the selected category.
func (s State) Source() domain.Source {
	return SourceForCategory(s.CategoryTag)
}

// SourceForCategory maps a category tag to the analysis source.
func SourceForCategory(tag string) domain.Source {
	if tag == string(domain.SourceConsumption) {
		return domain.SourceConsumption
	}
	return domain.SourceRegular
}

// Event is an input to Transition.
type Event interface {
	isEvent()
}

// SelectCategory switches category and drops any selection or pending analysis.
type SelectCategory struct{ Tag string }

// ChangePage moves to another page and drops any selection or pending analysis.
type ChangePage struct{ Page int }

// Deselect returns to Idle.
type Deselect struct{}

// BeginAnalysis starts request Token for Problem.
type BeginAnalysis struct {
	Token   uint64
	Problem domain.Problem
}

// AnalysisResolved delivers the outcome of request Token. A nil Result means
// no analysis was available.
type AnalysisResolved struct {
	Token   uint64
	Problem domain.Problem
	Result  *domain.AnalysisResult
}

// AnalysisFailed reports that request Token errored.
type AnalysisFailed struct {
	Token   uint64
	Problem domain.Problem
	Err     error
}

func (SelectCategory) isEvent()   {}
func (ChangePage) isEvent()       {}
func (Deselect) isEvent()         {}
func (BeginAnalysis) isEvent()    {}
func (AnalysisResolved) isEvent() {}
func (AnalysisFailed) isEvent()   {}

// Transition applies ev to s. The second return value is false when the
// event was stale and s is returned unchanged.
func Transition(s State, ev Event) (State, bool) {
	switch ev := ev.(type) {
	case SelectCategory:
		next := idle(s)
		next.CategoryTag = ev.Tag
		next.Page = 1
		return next, true
	case ChangePage:
		next := idle(s)
		next.Page = max(1, ev.Page)
		return next, true
	case Deselect:
		return idle(s), true
	case BeginAnalysis:
		next := idle(s)
		next.Phase = PhaseAnalyzing
		next.AnalyzingProblemID = idPtr(ev.Problem.ID)
		next.request = ev.Token
		return next, true
	case AnalysisResolved:
		if !s.awaiting(ev.Token, ev.Problem.ID) {
			return s, false
		}
		problem := ev.Problem
		if ev.Result != nil {
			problem = problem.WithAnalysis(*ev.Result)
		}
		next := settled(s, problem)
		next.Phase = PhaseReady
		return next, true
	case AnalysisFailed:
		if !s.awaiting(ev.Token, ev.Problem.ID) {
			return s, false
		}
		next := settled(s, ev.Problem)
		next.Phase = PhaseFailed
		next.Error = "analysis failed, please try again"
		return next, true
	}
	return s, false
}

func (s State) awaiting(token uint64, problemID int64) bool {
	return s.Phase == PhaseAnalyzing &&
		s.request == token &&
		s.AnalyzingProblemID != nil &&
		*s.AnalyzingProblemID == problemID
}

func idle(s State) State {
	s.Phase = PhaseIdle
	s.SelectedProblemID = nil
	s.AnalyzingProblemID = nil
	s.Problem = nil
	s.Error = ""
	return s
}

func settled(s State, problem domain.Problem) State {
	s.AnalyzingProblemID = nil
	s.SelectedProblemID = idPtr(problem.ID)
	s.Problem = &problem
	s.Error = ""
	return s
}

func idPtr(id int64) *int64 {
	return &id
}
