package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderOpen             OrderStatus = "open"
	OrderMatched          OrderStatus = "matched"
	OrderShipped          OrderStatus = "shipped"
	OrderUnmatchedAlerted OrderStatus = "unmatched-alerted"
)

// LabelState is the lifecycle state of a label object.
type LabelState string

const (
	LabelIncoming   LabelState = "incoming"
	LabelMatched    LabelState = "matched"
	LabelProcessing LabelState = "processing"
	LabelProcessed  LabelState = "processed"
	LabelErrored    LabelState = "errored"
	LabelOrphaned   LabelState = "orphaned"
	LabelDiscarded  LabelState = "discarded"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in-progress"
	MatchCompleted  MatchStatus = "completed"
	MatchFailed     MatchStatus = "failed"
)

// Step is the last pipeline step a match completed.
type Step string

const (
	StepNone     Step = ""
	StepFetched  Step = "fetched"
	StepPrinted  Step = "printed"
	StepArchived Step = "archived"
)

var stepRank = map[Step]int{StepNone: 0, StepFetched: 1, StepPrinted: 2, StepArchived: 3}

// Reached reports whether s is at or past other.
func (s Step) Reached(other Step) bool {
	return stepRank[s] >= stepRank[other]
}

// Order is an order reported open by the order feed.
type Order struct {
	ID              string      `gorm:"primaryKey;size:128" json:"id"`
	Status          OrderStatus `gorm:"size:32;index;not null" json:"status"`
	FirstSeen       time.Time   `json:"first_seen"`
	LastSeen        time.Time   `json:"last_seen"`
	MissedRefreshes int         `gorm:"not null;default:0" json:"missed_refreshes"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName pins the table name.
func (Order) TableName() string { return "orders" }

// Label is a label object observed under the incoming prefix. The record
// outlives the object: after archiving, ArchiveKey points at its new location.
type Label struct {
	ObjectKey     string     `gorm:"primaryKey;column:object_key;size:512" json:"object_key"`
	OrderID       string     `gorm:"size:128;index" json:"order_id,omitempty"`
	ETag          string     `gorm:"column:etag;size:128" json:"etag,omitempty"`
	Size          int64      `json:"size"`
	Fingerprint   string     `gorm:"size:64;index" json:"fingerprint,omitempty"`
	State         LabelState `gorm:"size:32;index;not null" json:"state"`
	DiscoveredAt  time.Time  `json:"discovered_at"`
	LastSeen      time.Time  `json:"last_seen"`
	ArchiveKey    string     `gorm:"size:512" json:"archive_key,omitempty"`
	ClaimDeadline *time.Time `json:"claim_deadline,omitempty"`
	AlertedAt     *time.Time `json:"alerted_at,omitempty"`
	Reason        string     `gorm:"size:1024" json:"reason,omitempty"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName pins the table name.
func (Label) TableName() string { return "labels" }

// Active reports whether the label currently holds its order. An errored
// label that was alerted has failed for good and released the order to the
// operator.
func (l *Label) Active() bool {
	switch l.State {
	case LabelMatched, LabelProcessing:
		return true
	case LabelErrored:
		return l.AlertedAt == nil
	}
	return false
}

// ClaimExpired reports whether the label's claim deadline has passed.
func (l *Label) ClaimExpired(now time.Time) bool {
	return l.ClaimDeadline != nil && now.After(*l.ClaimDeadline)
}

// Match binds a label to its order and records pipeline progress. It is keyed
// by label so a crash can resume from Step. PrintKey is written before a job
// is handed to the printer and cleared when the printer refuses it.
type Match struct {
	LabelKey        string      `gorm:"primaryKey;size:512" json:"label_key"`
	ID              string      `gorm:"size:36;uniqueIndex" json:"id"`
	OrderID         string      `gorm:"size:128;index" json:"order_id"`
	Status          MatchStatus `gorm:"size:32;index;not null" json:"status"`
	Step            Step        `gorm:"size:32" json:"step"`
	FetchAttempts   int         `json:"fetch_attempts"`
	PrintAttempts   int         `json:"print_attempts"`
	ArchiveAttempts int         `json:"archive_attempts"`
	Drives          int         `json:"drives"`
	Terminal        bool        `json:"terminal"`
	Fingerprint     string      `gorm:"size:64" json:"fingerprint,omitempty"`
	PrintKey        string      `gorm:"size:128" json:"print_key,omitempty"`
	PrintAck        string      `gorm:"size:256" json:"print_ack,omitempty"`
	LastError       string      `gorm:"size:1024" json:"last_error,omitempty"`
	CreatedAt       time.Time   `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName pins the table name.
func (Match) TableName() string { return "matches" }
