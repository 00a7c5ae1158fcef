package models

// Статусы и причины жалоб.
const (
	ReportStatusPending  = "pending"
	ReportStatusResolved = "resolved"

	ReportReasonSpam   = "spam"
	ReportReasonInsult = "insult"
	ReportReasonScam   = "scam"
	ReportReasonOther  = "other"
)

// Report — жалоба одного пользователя на другого. Создаётся в статусе
// pending, закрывается модератором без промежуточных состояний.
type Report struct {
	ID          string `json:"id"`
	ReporterID  int64  `json:"reporterId"`
	ReportedID  int64  `json:"reportedId"`
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Status      string `json:"status"`
}

// Pending сообщает, ожидает ли жалоба рассмотрения.
func (r *Report) Pending() bool {
	return r.Status == ReportStatusPending
}
