package models

import "time"

// AppealDecision is the admin's verdict on an appeal.
type AppealDecision string

const (
	AppealApprove AppealDecision = "approve"
	AppealReject  AppealDecision = "reject"
)

type Appeal struct {
	ID                 string          `json:"id"`
	AccountID          string          `json:"account_id"`
	Role               Role            `json:"role"`
	StatusAtSubmission AccountStatus   `json:"current_status"`
	Subject            string          `json:"subject,omitempty"`
	Message            string          `json:"message"`
	Resolved           bool            `json:"resolved"`
	Decision           *AppealDecision `json:"decision,omitempty"`
	ResolvedBy         *string         `json:"resolved_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
}
