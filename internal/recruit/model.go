package recruit

import "time"

// Position is an open role on a contest board.
type Position struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Cnt         *int   `json:"cnt,omitempty"`
}

// Board is a recruiting post.
type Board struct {
	ID             string     `json:"id"`
	AuthorID       string     `json:"authorId"`
	Kind           Kind       `json:"kind"`
	Category       Category   `json:"category"`
	Topic          string     `json:"topic"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Positions      []Position `json:"positions"`
	WantCnt        int        `json:"wantCnt"`
	ApplicationCnt int        `json:"applicationCnt"`
	AcceptCnt      int        `json:"acceptCnt"`
	Hit            int        `json:"hit"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	IsCompleted    bool       `json:"isCompleted"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Application is a user's request to join a board. AuthorID is the board
// owner, copied at insert time so owner-scoped filters need no board lookup.
type Application struct {
	ID            string     `json:"id"`
	ApplicantID   string     `json:"applicantId"`
	BoardID       string     `json:"boardId"`
	AuthorID      string     `json:"authorId"`
	WantedText    string     `json:"wantedText"`
	Position      string     `json:"position,omitempty"`
	Portfolio     string     `json:"portfolio,omitempty"`
	PortfolioText string     `json:"portfolioText,omitempty"`
	IsAccepted    bool       `json:"isAccepted"`
	AcceptedAt    *time.Time `json:"acceptedAt,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Member is one seat of a formed team.
type Member struct {
	AccountID string `json:"accountId"`
	Position  string `json:"position,omitempty"`
}

// Team is the immutable group formed from a completed board.
type Team struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"boardId"`
	Name      string    `json:"name"`
	MasterID  string    `json:"masterId"`
	Members   []Member  `json:"members"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// BoardView is a board as seen by a (possibly anonymous) viewer. The flags
// are nil for anonymous viewers.
type BoardView struct {
	Board      *Board `json:"board"`
	IsApplied  *bool  `json:"isApplied,omitempty"`
	IsAccepted *bool  `json:"isAccepted,omitempty"`
}

// BoardPage is one page of a board listing.
type BoardPage struct {
	List  []Board `json:"list"`
	Count int     `json:"count"`
}

// ApplicationPage is one page of an application listing.
type ApplicationPage struct {
	List  []Application `json:"list"`
	Count int           `json:"count"`
}

// Stats are the advisory operational tallies.
type Stats struct {
	Visit       int64 `json:"visit"`
	Account     int64 `json:"account"`
	List        int64 `json:"list"`
	Application int64 `json:"application"`
	Team        int64 `json:"team"`
}

// DeleteResult is the outcome of DeleteApplication.
type DeleteResult int

const (
	DeleteOK DeleteResult = iota
	DeleteBlocked
	DeleteNotFound
)

func (r DeleteResult) String() string {
	switch r {
	case DeleteOK:
		return "ok"
	case DeleteBlocked:
		return "blocked"
	}
	return "not_found"
}

// RosterPolicy selects which applications make up a team at CreateTeam time.
type RosterPolicy string

const (
	// RosterActive takes every active application on the board. This is the
	// historical behavior: owners prune the roster by removing applications.
	RosterActive RosterPolicy = "active"
	// RosterAccepted takes only active, accepted applications.
	RosterAccepted RosterPolicy = "accepted"
)

// ParseRosterPolicy converts a raw string to a RosterPolicy.
func ParseRosterPolicy(s string) (RosterPolicy, bool) {
	switch p := RosterPolicy(s); p {
	case RosterActive, RosterAccepted:
		return p, true
	}
	return "", false
}
