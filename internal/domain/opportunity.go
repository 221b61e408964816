package domain

import "time"

// OpportunityType classifies a detected opportunity.
type OpportunityType string

const (
	OpportunityArbitrage OpportunityType = "arbitrage"
	OpportunitySpread    OpportunityType = "spread"
	OpportunityNegRisk   OpportunityType = "neg_risk"
	OpportunityMomentum  OpportunityType = "momentum"
)

// OpportunityStatus is the lifecycle state of an opportunity.
type OpportunityStatus string

const (
	OpportunityStatusActive  OpportunityStatus = "active"
	OpportunityStatusExpired OpportunityStatus = "expired"
)

// Opportunity is a scored trading opportunity for one market (or, for
// negative-risk, one group). Opportunities are upserted by (MarketID, Type):
// the latest detection replaces any prior active record for the same key,
// which makes detector passes idempotent.
type Opportunity struct {
	ID              string
	MarketID        string // condition ID, or neg-risk group ID for OpportunityNegRisk
	Type            OpportunityType
	ProfitPotential float64 // percent
	Confidence      float64 // 0-100
	Details         map[string]any
	Status          OpportunityStatus
	DetectedAt      time.Time
	UpdatedAt       time.Time
}
