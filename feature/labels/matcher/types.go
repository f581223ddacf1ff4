package matcher

import (
	"time"

	"label-matcher/feature/labels/models"
)

// Reasons recorded on orphaned labels.
const (
	ReasonNoIdentifier = "no identifier"
	ReasonNoOpenOrder  = "no open order"
)

// Candidate is an (order, label) pair eligible for processing.
type Candidate struct {
	OrderID      string    `json:"order_id"`
	LabelKey     string    `json:"label_key"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Conflict is an order with more than one eligible label, or with a new
// label while another one is already active.
type Conflict struct {
	OrderID string `json:"order_id"`
	// LabelKeys are the incoming labels competing for the order, earliest first.
	LabelKeys []string `json:"label_keys"`
	// ActiveKeys are labels already holding the order.
	ActiveKeys []string `json:"active_keys,omitempty"`
}

// Orphan is an incoming label that can never match or waited too long.
type Orphan struct {
	LabelKey string `json:"label_key"`
	OrderID  string `json:"order_id,omitempty"`
	Reason   string `json:"reason"`
}

// Plan is the outcome of one matcher run. It is a pure function of the
// snapshot it was computed from.
type Plan struct {
	NewMatches    []Candidate `json:"new_matches"`
	Conflicts     []Conflict  `json:"conflicts"`
	NewlyOrphaned []Orphan    `json:"newly_orphaned"`
	// Waiting are incoming labels whose order has not appeared yet.
	Waiting []string `json:"waiting"`
	// Held are incoming labels for orders parked after an alert.
	Held    []string  `json:"held"`
	Summary Summary   `json:"summary"`
	At      time.Time `json:"at"`
}

// Summary provides aggregate counts for a plan.
type Summary struct {
	OpenOrders     int `json:"open_orders"`
	IncomingLabels int `json:"incoming_labels"`
	NewMatches     int `json:"new_matches"`
	Conflicts      int `json:"conflicts"`
	Orphans        int `json:"orphans"`
	Waiting        int `json:"waiting"`
	Held           int `json:"held"`
}

// Options controls classification.
type Options struct {
	// OrphanTimeout is how long a label without an open order may wait.
	OrphanTimeout time.Duration
}

// Snapshot is the store content a plan is computed from.
type Snapshot struct {
	// Orders holds open, matched and unmatched-alerted orders by id.
	Orders map[string]models.Order
	// Incoming holds every incoming label.
	Incoming []models.Label
	// Active maps an order id to the keys of labels currently holding it.
	Active map[string][]string
	Now    time.Time
}
