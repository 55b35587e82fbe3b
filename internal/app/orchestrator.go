package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"wrongnote-service/internal/domain"
)

// DefaultMinAnalysisDuration keeps the analyzing state visible long enough
// that fast responses do not flicker.
const DefaultMinAnalysisDuration = time.Second

// Clock abstracts timers so tests can control the minimum analysis duration.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// AnalysisOrchestrator owns the selection state of one member and drives
// analysis requests through it. Only the most recently issued request may
// commit a result; older ones run to completion and are dropped.
type AnalysisOrchestrator struct {
	memberID    string
	analyzer    Analyzer
	clock       Clock
	minDuration time.Duration
	logger      *slog.Logger
	calls       singleflight.Group
	inflight    sync.WaitGroup

	// test hook, called after every analysis outcome
	afterSettle func(token uint64, applied bool)

	mu          sync.Mutex
	state       State
	nextToken   uint64
	subscribers map[chan State]struct{}
}

// NewAnalysisOrchestrator builds an orchestrator starting Idle on categoryTag.
func NewAnalysisOrchestrator(memberID, categoryTag string, analyzer Analyzer, clock Clock, minDuration time.Duration, logger *slog.Logger) *AnalysisOrchestrator {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisOrchestrator{
		memberID:    memberID,
		analyzer:    analyzer,
		clock:       clock,
		minDuration: minDuration,
		logger:      logger,
		state:       NewState(categoryTag),
		subscribers: make(map[chan State]struct{}),
	}
}

// State returns the current snapshot.
func (o *AnalysisOrchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Apply feeds a user event through Transition.
func (o *AnalysisOrchestrator) Apply(ev Event) State {
	next, _ := o.apply(ev)
	return next
}

// Select starts analyzing problem, superseding whatever was in flight.
// It returns the Analyzing state immediately; the outcome is delivered to
// subscribers once both the call and the minimum duration have elapsed.
func (o *AnalysisOrchestrator) Select(ctx context.Context, problem domain.Problem) State {
	o.mu.Lock()
	o.nextToken++
	token := o.nextToken
	source := o.state.Source()
	next, _ := Transition(o.state, BeginAnalysis{Token: token, Problem: problem})
	o.state = next
	o.broadcastLocked()
	o.mu.Unlock()

	// Started before the call so the minimum duration counts from selection.
	minimum := o.clock.After(o.minDuration)

	o.inflight.Add(1)
	go o.run(context.WithoutCancel(ctx), token, problem, source, minimum)
	return next
}

// Wait blocks until every issued analysis has settled.
func (o *AnalysisOrchestrator) Wait() {
	o.inflight.Wait()
}

func (o *AnalysisOrchestrator) run(ctx context.Context, token uint64, problem domain.Problem, source domain.Source, minimum <-chan time.Time) {
	defer o.inflight.Done()

	var result *domain.AnalysisResult
	var g errgroup.Group
	g.Go(func() error {
		<-minimum
		return nil
	})
	g.Go(func() error {
		var err error
		result, err = o.analyze(ctx, problem.ID, source)
		return err
	})

	var ev Event
	if err := g.Wait(); err != nil {
		o.logger.Warn("analysis failed",
			"member_id", o.memberID,
			"problem_id", problem.ID,
			"source", source,
			"error", err,
		)
		ev = AnalysisFailed{Token: token, Problem: problem, Err: err}
	} else {
		// g.Wait orders the write to result before this read.
		ev = AnalysisResolved{Token: token, Problem: problem, Result: result}
	}

	_, applied := o.apply(ev)
	if !applied {
		o.logger.Debug("discarding superseded analysis",
			"member_id", o.memberID,
			"problem_id", problem.ID,
		)
	}
	if o.afterSettle != nil {
		o.afterSettle(token, applied)
	}
}

// analyze shares one backend call between concurrent requests for the same problem.
func (o *AnalysisOrchestrator) analyze(ctx context.Context, problemID int64, source domain.Source) (*domain.AnalysisResult, error) {
	key := fmt.Sprintf("%s:%s:%d", o.memberID, source, problemID)
	v, err, _ := o.calls.Do(key, func() (interface{}, error) {
		return o.analyzer.Analyze(ctx, o.memberID, problemID, source)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAnalysisFailed, err)
	}
	result, _ := v.(*domain.AnalysisResult)
	return result, nil
}

func (o *AnalysisOrchestrator) apply(ev Event) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	next, applied := Transition(o.state, ev)
	if applied {
		o.state = next
		o.broadcastLocked()
	}
	return o.state, applied
}

// Subscribe returns a channel of state snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (o *AnalysisOrchestrator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	o.mu.Lock()
	ch <- o.state
	o.subscribers[ch] = struct{}{}
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		if _, ok := o.subscribers[ch]; ok {
			delete(o.subscribers, ch)
			close(ch)
		}
		o.mu.Unlock()
	}
	return ch, cancel
}

// Close detaches all subscribers.
func (o *AnalysisOrchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.subscribers {
		delete(o.subscribers, ch)
		close(ch)
	}
}

func (o *AnalysisOrchestrator) broadcastLocked() {
	for ch := range o.subscribers {
		select {
		case ch <- o.state:
		default:
			// slow reader: drop the oldest snapshot, the newest one wins
			select {
			case <-ch:
			default:
			}
			ch <- o.state
		}
	}
}
