package model

import "time"

// CreditPack is a prepaid bundle of class credits belonging to a
// member.  RemainingCredits never goes negative: debits happen through
// an atomic conditional update.  Refunds are capped at InitialCredits
// so repeated book/cancel cycles cannot inflate a pack beyond what was
// purchased.  Corresponds to the `credit_packs` table.
type CreditPack struct {
	ID               uint64     // credit_packs.id
	MemberID         uint64     // credit_packs.member_id
	InitialCredits   uint32     // credit_packs.initial_credits
	RemainingCredits uint32     // credit_packs.remaining_credits
	ExpiresAt        *time.Time // credit_packs.expires_at (nullable = never expires)
	CreatedAt        time.Time  // credit_packs.created_at
	UpdatedAt        time.Time  // credit_packs.updated_at
}

// Subscription statuses.
const SubscriptionStatusActive = "active"

// Subscription is a member's recurring membership.  When its plan id
// appears in a class's IncludedPlanIDs, that class is free for the
// member and credit packs are not touched.
type Subscription struct {
	ID        uint64    // subscriptions.id
	MemberID  uint64    // subscriptions.member_id
	PlanID    uint64    // subscriptions.plan_id
	Status    string    // subscriptions.status
	CreatedAt time.Time // subscriptions.created_at
	UpdatedAt time.Time // subscriptions.updated_at
}
