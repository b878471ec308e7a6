package dto

// DashboardSummary aggregates the operational counters shown on the
// admin home screen. Served from cache when fresh.
type DashboardSummary struct {
	AppointmentsToday    int64            `json:"appointmentsToday"`
	AppointmentsUpcoming int64            `json:"appointmentsUpcoming"`
	PendingCancellations int64            `json:"pendingCancellations"`
	PendingWithdrawals   int64            `json:"pendingWithdrawals"`
	ActivePatients       int64            `json:"activePatients"`
	ActivePsychologists  int64            `json:"activePsychologists"`
	StatusBreakdown      map[string]int64 `json:"statusBreakdown"`
	GeneratedAt          string           `json:"generatedAt"`
}
