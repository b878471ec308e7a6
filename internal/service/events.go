package service

import "fmt"

// EventPublisher pushes realtime events to subscribed clients. Implemented
// by the websocket hub; services treat publishing as best effort.
type EventPublisher interface {
	Publish(topic, event string, payload interface{})
}

// Realtime event names shared with the frontend cache layer.
const (
	EventUserStatusUpdate     = "user:status-update"
	EventUserBlocked          = "user:blocked"
	EventUserOnboardingUpdate = "user:onboarding-update"
	EventConsultationChanged  = "consultation-status-changed"
	EventCancellationReviewed = "cancellation:reviewed"
)

// TopicUser returns the per-user subscription topic.
func TopicUser(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// TopicAdmin is the shared channel for back-office screens.
const TopicAdmin = "admin"

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, interface{}) {}
