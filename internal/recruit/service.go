package recruit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Default per-author limits.
const (
	DefaultMaxOpenBoards = 4
	DefaultMaxTeams      = 3
	defaultPageSize      = 12
	maxPageSize          = 100
)

// Limits caps how much one author may hold at once. Zero disables a limit.
type Limits struct {
	MaxOpenBoards int
	MaxTeams      int
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service is the lifecycle engine. It enforces the invariants that tie
// boards, applications and teams together and has no dependency on any
// transport.
type Service struct {
	store    Store
	counters Counters
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	limits   Limits
	roster   RosterPolicy
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithLimits sets the per-author limits.
func WithLimits(l Limits) Option { return func(s *Service) { s.limits = l } }

// WithRosterPolicy selects how CreateTeam picks team members.
func WithRosterPolicy(p RosterPolicy) Option { return func(s *Service) { s.roster = p } }

// WithIDGenerator overrides uuid.NewString.
func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

// NewService returns a configured Service.
func NewService(store Store, counters Counters, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		counters: counters,
		notifier: notifier,
		log:      slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
		limits:   Limits{MaxOpenBoards: DefaultMaxOpenBoards, MaxTeams: DefaultMaxTeams},
		roster:   RosterActive,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// fail converts a store failure into an InternalError. Domain errors raised
// inside transactions pass through untouched.
func (s *Service) fail(op string, err error) error {
	if isDomain(err) {
		return err
	}
	s.log.Error("store call failed", "op", op, "err", err)
	return &InternalError{Op: op, Err: err}
}

// bump increments an advisory counter. Failures are logged only.
func (s *Service) bump(ctx context.Context, name string) {
	if err := s.counters.Increment(ctx, name); err != nil {
		s.log.Warn("counter increment failed", "counter", name, "err", err)
	}
}

// notify hands ev to the notifier. Failures are logged only.
func (s *Service) notify(ctx context.Context, ev Event) {
	ev.At = s.now().UTC()
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("notify failed", "type", ev.Kind, "recipientId", ev.RecipientID, "err", err)
	}
}

func validateID(name, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{Msg: name + " must be a valid id"}
	}
	return nil
}

func normalizePage(offset, limit int) (skip, size int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return offset * limit, limit
}

func boolPtr(b bool) *bool { return &b }

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats records a visit and returns the advisory tallies. Counter read
// failures leave the affected tally at zero.
func (s *Service) Stats(ctx context.Context) *Stats {
	s.bump(ctx, CounterVisit)

	get := func(name string) int64 {
		v, err := s.counters.Get(ctx, name)
		if err != nil {
			s.log.Warn("counter read failed", "counter", name, "err", err)
			return 0
		}
		return v
	}

	return &Stats{
		Visit:       get(CounterVisit),
		Account:     get(CounterAccount),
		List:        get(CounterBoards),
		Application: get(CounterApplications),
		Team:        get(CounterTeams),
	}
}
