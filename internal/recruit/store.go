package recruit

import (
	"context"
	"errors"
	"time"
)

// CounterField names a numeric board field that IncrementCounter may change.
type CounterField string

const (
	FieldApplicationCnt CounterField = "applicationCnt"
	FieldAcceptCnt      CounterField = "acceptCnt"
	FieldHit            CounterField = "hit"
)

// Page bounds a listing. Limit 0 means unbounded.
type Page struct {
	Skip  int
	Limit int
	Order OrderSpec
}

// BoardFilter selects boards for FindActive. Inactive and completed boards
// are always excluded. A board whose end date is before Now is only visible
// when ViewerID is its author.
type BoardFilter struct {
	Kind       Kind     // KindAll or "" means any kind
	Category   Category // "" means any category
	ViewerID   string
	SearchText string
	Now        time.Time
}

// ApplicationFilter selects applications. Set fields are ANDed.
type ApplicationFilter struct {
	ApplicantID string
	AuthorID    string
	BoardID     string
	Kind        Kind // resolved against the board; KindAll or "" means any
	IsAccepted  *bool
	Active      *bool
}

// BoardUpdate is the editable content of a board.
type BoardUpdate struct {
	Kind      Kind
	Category  Category
	Topic     string
	Title     string
	Content   string
	Positions []Position
	WantCnt   int
	EndDate   time.Time
}

// BoardCountScope selects which of an author's boards CountByAuthor counts.
type BoardCountScope int

const (
	// CountOpen counts active, uncompleted boards whose end date is after now.
	CountOpen BoardCountScope = iota
	// CountCompleted counts boards that formed a team.
	CountCompleted
)

// BoardStore persists boards.
//
// IncrementCounter matching rules: positive deltas on applicationCnt and
// acceptCnt only match an active, uncompleted board; hit only matches an
// active board; negative deltas match by id alone.
type BoardStore interface {
	Insert(ctx context.Context, b *Board) (string, error)
	// FindByID returns ErrNotFound when no board has id.
	FindByID(ctx context.Context, id string) (*Board, error)
	// LockByID is FindByID holding the board's row lock until the enclosing
	// transaction ends. It serializes with MarkCompleted and the counter
	// writes on the same board.
	LockByID(ctx context.Context, id string) (*Board, error)
	FindActive(ctx context.Context, f BoardFilter, p Page) ([]Board, int, error)
	IncrementCounter(ctx context.Context, id string, field CounterField, delta int) (bool, error)
	// ConditionalUpdate only matches an active board owned by ownerID with
	// acceptCnt <= 0.
	ConditionalUpdate(ctx context.Context, id, ownerID string, u BoardUpdate) (bool, error)
	SoftDelete(ctx context.Context, id, ownerID string) (bool, error)
	// MarkCompleted flips isCompleted false→true on an active board owned by
	// ownerID. At most one caller ever observes true.
	MarkCompleted(ctx context.Context, id, ownerID string) (bool, error)
	CountByAuthor(ctx context.Context, authorID string, scope BoardCountScope, now time.Time) (int, error)
}

// ApplicationStore persists applications.
type ApplicationStore interface {
	// Insert returns ErrDuplicate when the applicant already has an active
	// application on the board.
	Insert(ctx context.Context, a *Application) (string, error)
	// FindByID returns ErrNotFound when no application has id.
	FindByID(ctx context.Context, id string) (*Application, error)
	CountActiveByApplicantAndBoard(ctx context.Context, applicantID, boardID string) (int, error)
	// FindAcceptedFlag reports whether the applicant holds an active,
	// accepted application on the board.
	FindAcceptedFlag(ctx context.Context, applicantID, boardID string) (bool, error)
	// ConditionalSetAccepted only matches an active, not yet accepted
	// application on boardID whose board author is authorID.
	ConditionalSetAccepted(ctx context.Context, id, boardID, authorID string) (bool, error)
	// ConditionalSoftDelete only matches an active application on boardID
	// whose applicant or board author is callerID. wasAccepted reports the
	// accepted flag of the deleted row.
	ConditionalSoftDelete(ctx context.Context, id, boardID, callerID string) (matched, wasAccepted bool, err error)
	FindList(ctx context.Context, f ApplicationFilter, p Page) ([]Application, int, error)
}

// TeamStore persists formed teams. Teams are never updated or deleted.
type TeamStore interface {
	// Insert returns ErrDuplicate when the board already has a team.
	Insert(ctx context.Context, t *Team) (string, error)
}

// Store groups the three stores and runs multi-document transactions.
type Store interface {
	Boards() BoardStore
	Applications() ApplicationStore
	Teams() TeamStore
	// InTx runs fn against a transactional view of the store. fn's writes
	// are discarded when it returns an error.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// ErrRepairConflict is returned by RepairCounts when a concurrent write
// invalidated its snapshot. Nothing was changed; the next run retries.
var ErrRepairConflict = errors.New("count repair conflicted with a concurrent write")

// CountRepairer recomputes applicationCnt and acceptCnt from application
// rows and returns the number of boards it corrected.
type CountRepairer interface {
	RepairCounts(ctx context.Context) (int64, error)
}

// ─── Collaborators ───────────────────────────────────────────────────────────

// Counter names used by Service.
const (
	CounterVisit        = "visitCnt"
	CounterAccount      = "accountCnt"
	CounterBoards       = "listCnt"
	CounterApplications = "applicationCnt"
	CounterTeams        = "teamCnt"
)

// Counters is the advisory metrics sink.
type Counters interface {
	Increment(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (int64, error)
}

// EventKind names a notification event.
type EventKind string

const (
	EventTeamFormed          EventKind = "EVENT_TEAM_FORMED"
	EventApplicationAccepted EventKind = "EVENT_APPLICATION_ACCEPTED"
)

// Event is the payload handed to the Notifier.
type Event struct {
	Kind          EventKind `json:"type"`
	RecipientID   string    `json:"recipientId"`
	BoardID       string    `json:"boardId"`
	BoardTitle    string    `json:"boardTitle,omitempty"`
	BoardKind     Kind      `json:"boardKind,omitempty"`
	BoardAuthorID string    `json:"boardAuthorId,omitempty"`
	ApplicationID string    `json:"applicationId,omitempty"`
	TeamID        string    `json:"teamId,omitempty"`
	TeamName      string    `json:"teamName,omitempty"`
	Message       string    `json:"message,omitempty"`
	At            time.Time `json:"at"`
}

// Notifier delivers events. Service logs its errors and never fails an
// operation because of them.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
