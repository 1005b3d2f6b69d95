package domain

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCommitted Status = "committed"
	StatusReleased  Status = "released"
	StatusExpired   Status = "expired"
)

// legalTransitions encodes the reservation state machine as a table so every
// (from, to) pair can be tested exhaustively. Terminal states have no exits.
var legalTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusCommitted: true,
		StatusReleased:  true,
		StatusExpired:   true,
	},
	StatusCommitted: {},
	StatusReleased:  {},
	StatusExpired:   {},
}

// CanTransition reports whether moving a reservation from one status to
// another is legal.
func CanTransition(from, to Status) bool {
	return legalTransitions[from][to]
}

// IsTerminal reports whether a reservation in this status can never change again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCommitted, StatusReleased, StatusExpired:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCommitted, StatusReleased, StatusExpired:
		return true
	}
	return false
}

// Reservation is a temporary claim on inventory for one stock-keying-unit.
// While pending it counts against the unit's reserved quantity; committing it
// converts the claim into a permanent on-hand decrement tied to an order.
type Reservation struct {
	ID          string
	ProductID   string
	VariantID   string
	Quantity    int
	Owner       Owner
	Status      Status
	OrderID     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CommittedAt *time.Time
	ReleasedAt  *time.Time
}

// TransitionFields carries the columns written alongside a status change.
type TransitionFields struct {
	OrderID     string
	CommittedAt *time.Time
	ReleasedAt  *time.Time
}

// Key returns the stock-keying-unit this reservation counts against.
func (r Reservation) Key() StockKey {
	return StockKey{ProductID: r.ProductID, VariantID: r.VariantID}
}

// Expired reports whether the reservation's hold window has passed.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
