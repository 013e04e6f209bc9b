package domain

import (
	"time"
)

// ChangeOp identifies the kind of history mutation in a change event.
type ChangeOp string

const (
	ChangeInserted ChangeOp = "inserted"
	ChangeUpdated  ChangeOp = "updated"
	ChangeDeleted  ChangeOp = "deleted"
)

// HistoryChange is pushed to every subscriber of the history store on each
// successful mutation. For deletes, Record carries the identifiers of the
// removed row.
type HistoryChange struct {
	Op     ChangeOp        `json:"op"`
	Record *DownloadRecord `json:"record,omitempty"`
	At     time.Time       `json:"at"`
}
