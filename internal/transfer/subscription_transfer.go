package transfer

import "time"

// SubscriptionEvent is the billing provider's webhook body, trimmed to the
// fields the webhook handler consumes.
type SubscriptionEvent struct {
	ID        string `json:"id"`
	EventType string `json:"eventType"`
	CreatedAt int64  `json:"created_at"`
	Object    struct {
		ID      string `json:"id"`
		Product struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"product"`
		Customer struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"customer"`
		Status                 string    `json:"status"`
		CurrentPeriodStartDate time.Time `json:"current_period_start_date"`
		CurrentPeriodEndDate   time.Time `json:"current_period_end_date"`
		Metadata               struct {
			InternalCustomerID string `json:"internal_customer_id"`
		} `json:"metadata"`
	} `json:"object"`
}
