package models

// Notification is an outbound message queued for best-effort delivery.
// Senders (e-mail, WhatsApp) are external collaborators behind an interface;
// delivery failure never affects the transaction that queued the message.
type Notification struct {
	RecipientID string `json:"recipient_id"`
	Email       string `json:"email"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Template    string `json:"template"`
}

// Notification templates used by the review and booking flows.
const (
	TemplateBookingConfirmed     = "booking_confirmed"
	TemplateCancellationCreated  = "cancellation_created"
	TemplateCancellationApproved = "cancellation_approved"
	TemplateCancellationRejected = "cancellation_rejected"
	TemplateWithdrawalReviewed   = "withdrawal_reviewed"
)
