package analysis

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"emitenwatch/internal/domain"
)

// DefaultPollInterval is used when a session is built without an explicit
// cadence.
const DefaultPollInterval = 5 * time.Second

// StatusQuerier is the view of the tracker a polling session needs.
type StatusQuerier interface {
	Status(ctx context.Context, symbol string) (domain.JobStatus, *domain.AnalysisJob, error)
}

// Transition is the typed payload delivered to a session observer when the
// observed job reaches a terminal state.
type Transition struct {
	Status domain.JobStatus
	Job    *domain.AnalysisJob
}

// Session observes a job's status on a fixed cadence until it reaches a
// terminal state. A session never creates jobs: StartFresh is called right
// after a successful create, Resume attaches to a job that is already in
// flight. The session owns its cancellation; Stop is idempotent.
type Session struct {
	querier  StatusQuerier
	symbol   string
	interval time.Duration

	mu      sync.Mutex
	status  domain.JobStatus
	cancel  context.CancelFunc
	started bool

	stopOnce    sync.Once
	done        chan struct{}
	transitions chan Transition
}

// NewSession creates a session observing the given symbol.
func NewSession(querier StatusQuerier, symbol string, interval time.Duration) *Session {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Session{
		querier:     querier,
		symbol:      strings.ToUpper(strings.TrimSpace(symbol)),
		interval:    interval,
		status:      domain.JobStatusIdle,
		done:        make(chan struct{}),
		transitions: make(chan Transition, 1),
	}
}

// StartFresh begins observation immediately after a successful create.
// Local state starts at pending.
func (s *Session) StartFresh(ctx context.Context) {
	s.start(ctx, domain.JobStatusPending)
}

// Resume begins observation of a job discovered already in flight, without
// issuing a create. Local state starts at processing.
func (s *Session) Resume(ctx context.Context) {
	s.start(ctx, domain.JobStatusProcessing)
}

func (s *Session) start(ctx context.Context, initial domain.JobStatus) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.status = initial
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.loop(ctx)
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, job, err := s.querier.Status(ctx, s.symbol)
			if err != nil {
				// Keep polling; the next tick may succeed.
				log.Printf("[WARN] poll status for %s: %v", s.symbol, err)
				continue
			}
			s.setStatus(status)
			if status.Terminal() {
				s.notify(Transition{Status: status, Job: job})
				s.Stop()
				return
			}
		}
	}
}

func (s *Session) notify(t Transition) {
	select {
	case s.transitions <- t:
	default:
	}
}

func (s *Session) setStatus(status domain.JobStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Status returns the session's current local state.
func (s *Session) Status() domain.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Transitions delivers the terminal transition, if one is reached.
func (s *Session) Transitions() <-chan Transition {
	return s.transitions
}

// Done is closed once the polling loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop cancels the scheduled repetition. Safe to call any number of times,
// from terminal transition, teardown, or a new submission.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		if !s.started {
			// Never started: block a later start and release waiters.
			s.started = true
			close(s.done)
		}
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}
