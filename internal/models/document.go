package models

// DocumentStatus is the status of a purchasing document as it moves through
// the approval stages.
type DocumentStatus string

const (
	StatusDraft             DocumentStatus = "draft"
	StatusPending           DocumentStatus = "pending"
	StatusReturned          DocumentStatus = "returned"
	StatusApproved          DocumentStatus = "approved"
	StatusPartiallyReceived DocumentStatus = "partially_received"
	StatusReceived          DocumentStatus = "received"
	StatusClosed            DocumentStatus = "closed"
	StatusRejected          DocumentStatus = "rejected"
)

// StageID identifies a workflow stage.
type StageID int
