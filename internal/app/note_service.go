package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wrongnote-service/internal/domain"
)

// WrongAnswerFetcher loads the raw wrong-answer stream of one quiz source.
type WrongAnswerFetcher interface {
	FetchWrongAnswers(ctx context.Context, memberID string, source domain.Source) ([]domain.RawAnswer, error)
}

// Analyzer requests an analysis of a problem. A nil result with a nil error
// means no analysis is available.
type Analyzer interface {
	Analyze(ctx context.Context, memberID string, problemID int64, source domain.Source) (*domain.AnalysisResult, error)
}

// AttemptLogFetcher loads the live attempt log of a problem.
type AttemptLogFetcher interface {
	FetchAttemptLog(ctx context.Context, memberID string, problemID int64) ([]domain.AttemptRecord, error)
}

// SessionRepository abstracts where open note sessions live (in-memory, Redis-marked).
type SessionRepository interface {
	GetOrCreate(memberID string, create func() *Session) (*Session, bool)
	Get(memberID string) (*Session, bool)
	// DeleteIfEmpty removes the session when no connection is attached and
	// reports whether it did.
	DeleteIfEmpty(memberID string) bool
}

// Options tunes a NoteService.
type Options struct {
	StaticCategories    []domain.Category
	MinAnalysisDuration time.Duration
	Clock               Clock
	Logger              *slog.Logger
}

// NoteService contains the wrong-answer note use cases.
type NoteService struct {
	sessions SessionRepository
	fetcher  WrongAnswerFetcher
	analyzer Analyzer
	logs     AttemptLogFetcher
	opts     Options
}

func NewNoteService(sessions SessionRepository, fetcher WrongAnswerFetcher, analyzer Analyzer, logs AttemptLogFetcher, opts Options) *NoteService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.MinAnalysisDuration <= 0 {
		opts.MinAnalysisDuration = DefaultMinAnalysisDuration
	}
	return &NoteService{
		sessions: sessions,
		fetcher:  fetcher,
		analyzer: analyzer,
		logs:     logs,
		opts:     opts,
	}
}

// Open attaches a connection to the member's note session, creating it and
// loading both wrong-answer categories if it did not exist yet. Every Open
// must be paired with a Close.
func (s *NoteService) Open(ctx context.Context, memberID string) (*Session, error) {
	if memberID == "" {
		return nil, domain.ErrMemberRequired
	}
	for {
		session, created := s.sessions.GetOrCreate(memberID, func() *Session {
			return s.newSession(memberID)
		})
		session.attach()
		// A concurrent last Close may have dropped the session before we attached.
		if current, ok := s.sessions.Get(memberID); !ok || current != session {
			session.detach()
			continue
		}
		if created {
			// Fetch failures are already degraded to empty categories.
			if err := session.categories.Load(ctx, memberID); err != nil {
				s.opts.Logger.Warn("note session opened with degraded categories",
					"member_id", memberID,
					"error", err,
				)
			}
		}
		return session, nil
	}
}

// Session returns an already opened session.
func (s *NoteService) Session(memberID string) (*Session, error) {
	session, ok := s.sessions.Get(memberID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Close detaches one connection. The session is dropped once the last
// connection is gone; in-flight analyses then finish in the background and
// are discarded.
func (s *NoteService) Close(memberID string) {
	session, ok := s.sessions.Get(memberID)
	if !ok {
		return
	}
	session.detach()
	if s.sessions.DeleteIfEmpty(memberID) {
		session.orchestrator.Close()
	}
}

func (s *NoteService) newSession(memberID string) *Session {
	logger := s.opts.Logger.With("member_id", memberID)
	categories := NewCategoryStore(s.fetcher, s.opts.StaticCategories, logger)
	return &Session{
		memberID:     memberID,
		categories:   categories,
		orchestrator: NewAnalysisOrchestrator(memberID, categories.DefaultTag(), s.analyzer, s.opts.Clock, s.opts.MinAnalysisDuration, logger),
		stats:        NewStatisticsCalculator(memberID, s.logs, logger),
	}
}

// Session is one member's wrong-answer note: categories, selection and analysis.
type Session struct {
	memberID     string
	categories   *CategoryStore
	orchestrator *AnalysisOrchestrator
	stats        *StatisticsCalculator

	// number of connections attached through NoteService.Open
	attached atomic.Int32

	// serializes selection commands so lookups and transitions see the same state
	mu sync.Mutex
}

// NewSession builds a session from explicit parts; infrastructure tests use it to seed stores.
func NewSession(memberID string, categories *CategoryStore, orchestrator *AnalysisOrchestrator, stats *StatisticsCalculator) *Session {
	return &Session{
		memberID:     memberID,
		categories:   categories,
		orchestrator: orchestrator,
		stats:        stats,
	}
}

// MemberID returns the owner of the session.
func (s *Session) MemberID() string { return s.memberID }

// IsEmpty reports whether no connection is attached.
func (s *Session) IsEmpty() bool {
	return s.attached.Load() <= 0
}

func (s *Session) attach() { s.attached.Add(1) }

func (s *Session) detach() {
	for {
		n := s.attached.Load()
		if n <= 0 || s.attached.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// View is everything needed to render the note page.
type View struct {
	Categories []CategorySummary `json:"categories"`
	Category   *CategorySummary  `json:"category,omitempty"`
	Problems   []domain.Problem  `json:"problems"`
	TotalPages int               `json:"totalPages"`
	// Empty marks a category without wrong answers, a valid terminal state.
	Empty bool  `json:"empty"`
	State State `json:"state"`
}

// CategorySummary is a category without its problem list.
type CategorySummary struct {
	ID            int    `json:"id"`
	Tag           string `json:"tag"`
	Name          string `json:"name"`
	TotalProblems int    `json:"totalProblems"`
}

func summarizeCategory(c domain.Category) CategorySummary {
	return CategorySummary{ID: c.ID, Tag: c.Tag, Name: c.Name, TotalProblems: c.TotalProblems}
}

// View renders the current page of the selected category.
func (s *Session) View() View {
	state := s.orchestrator.State()
	all := s.categories.AllCategories()
	summaries := make([]CategorySummary, 0, len(all))
	for _, c := range all {
		summaries = append(summaries, summarizeCategory(c))
	}

	view := View{Categories: summaries, Problems: []domain.Problem{}, TotalPages: 1, Empty: true, State: state}
	current, ok := s.categories.CurrentCategory(state.CategoryTag)
	if !ok {
		return view
	}
	summary := summarizeCategory(current)
	view.Category = &summary
	view.Problems = Page(current.Problems, state.Page, PageSize)
	view.TotalPages = TotalPages(current.Problems, PageSize)
	view.Empty = len(current.Problems) == 0
	return view
}

// State returns the current selection state.
func (s *Session) State() State {
	return s.orchestrator.State()
}

// SelectCategory switches to the category tagged tag.
func (s *Session) SelectCategory(tag string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.knownTag(tag) {
		return s.orchestrator.State(), domain.ErrCategoryNotFound
	}
	return s.orchestrator.Apply(SelectCategory{Tag: tag}), nil
}

// ChangePage moves to page. Clamping to the last page is left to the caller.
func (s *Session) ChangePage(page int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orchestrator.Apply(ChangePage{Page: page})
}

// Deselect clears the selected problem.
func (s *Session) Deselect() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orchestrator.Apply(Deselect{})
}

// SelectProblem starts analyzing a problem on the visible page.
func (s *Session) SelectProblem(ctx context.Context, problemID int64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.orchestrator.State()
	current, ok := s.categories.CurrentCategory(state.CategoryTag)
	if !ok {
		return state, domain.ErrCategoryNotFound
	}
	for _, p := range Page(current.Problems, state.Page, PageSize) {
		if p.ID == problemID {
			return s.orchestrator.Select(ctx, p), nil
		}
	}
	return state, domain.ErrProblemNotFound
}

// Subscribe streams state snapshots; the caller must invoke cancel.
func (s *Session) Subscribe() (<-chan State, func()) {
	return s.orchestrator.Subscribe()
}

// Wait blocks until every issued analysis has settled.
func (s *Session) Wait() {
	s.orchestrator.Wait()
}

func (s *Session) knownTag(tag string) bool {
	if tag == string(domain.SourceRegular) || tag == string(domain.SourceConsumption) {
		return true
	}
	_, ok := s.categories.CurrentCategory(tag)
	return ok
}
