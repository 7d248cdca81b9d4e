package ledger

import "github.com/kridavyuha/auction-server/internals/storage"

type Action string

const (
	ActionCredit Action = "credit"
	ActionDebit  Action = "debit"
)

type AdjustRequestBody struct {
	TeamID string `json:"team_id"`
	Action Action `json:"action"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type ResetResult struct {
	Team     storage.Team     `json:"team"`
	Reverted []storage.Player `json:"reverted"`
}

// Reconciliation compares the cached remaining budget with the value derived
// from sold players and the current-epoch wallet adjustments.
type Reconciliation struct {
	TeamID     string `json:"team_id"`
	Budget     int64  `json:"budget"`
	SoldTotal  int64  `json:"sold_total"`
	Credits    int64  `json:"credits"`
	Debits     int64  `json:"debits"`
	Expected   int64  `json:"expected"`
	Cached     int64  `json:"cached"`
	Consistent bool   `json:"consistent"`
}
