package models

// Task status values. CREATED exists for compatibility with records
// migrated from older deployments; CreateTask produces tasks directly
// in ASSIGNED. COMPLETED and CANCELED are terminal.
const (
	TaskStatusCreated   = "CREATED"
	TaskStatusAssigned  = "ASSIGNED"
	TaskStatusCompleted = "COMPLETED"
	TaskStatusCanceled  = "CANCELED"
)

// Payment is the amount and asset escrowed for a task. It must equal
// the referenced proposal's price exactly.
type Payment struct {
	Asset  Asset `json:"asset"`
	Amount int64 `json:"amount"`
}

// Task is a payable unit of work issued against a proposal. The
// escrowed amount is fixed at creation and moves exactly once, to
// exactly one of the assignee (complete) or the issuer (cancel).
type Task struct {
	ID         int64   `json:"id"`
	Prompt     string  `json:"prompt"`
	Issuer     Address `json:"issuer"`
	Assignee   Address `json:"assignee"`
	ProposalID int64   `json:"proposal_id"`
	Amount     int64   `json:"amount"`
	Asset      Asset   `json:"asset"`
	Status     string  `json:"status"`
	Result     string  `json:"result"`
	Rating     int64   `json:"rating"` // 0 = unrated
}
