package models

import (
	"time"
)

type Subscription struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"user_id"`
	ProviderSubID    string    `db:"provider_sub_id" json:"provider_sub_id"`
	PlanID           string    `db:"plan_id" json:"plan_id"`
	Status           string    `db:"status" json:"status"`
	CurrentPeriodEnd time.Time `db:"current_period_end" json:"current_period_end"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// ActiveAt reports whether the subscription entitles the user at t. A
// cancelled plan stays usable until the paid period runs out.
func (s *Subscription) ActiveAt(t time.Time) bool {
	if s.Status == SubscriptionExpired {
		return false
	}
	return s.CurrentPeriodEnd.After(t)
}
