package domain

import "time"

// ReportStatus is the overall outcome of a run
type ReportStatus string

const (
	ReportStatusSuccess ReportStatus = "SUCCESS"
	ReportStatusError   ReportStatus = "ERROR"
)

// ReportTypeStatus is the type tag of status report mail documents.
const ReportTypeStatus = "status"

// MailMessage is the subject and body of a report
type MailMessage struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// StatusReport is the mail document persisted for downstream delivery
type StatusReport struct {
	To        []string    `json:"to"`
	Message   MailMessage `json:"message"`
	Type      string      `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Group lists member accounts
type Group struct {
	Name     string   `json:"name"`
	Accounts []string `json:"accounts"`
}

// Account is the part of an account document the reporter reads
type Account struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Valid bool   `json:"valid,omitempty"`
}
