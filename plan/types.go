package plan

import "time"

// Direction is the side of the planned trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionNone  Direction = "none"
)

// InstrumentType identifies what the plan trades.
type InstrumentType string

const (
	InstrumentFutures    InstrumentType = "futures"
	InstrumentCallOption InstrumentType = "call-option"
	InstrumentPutOption  InstrumentType = "put-option"
)

// Status is the plan lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExecuted  Status = "executed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusRejected  Status = "rejected"
)

// EntryZone is the suggested entry band. Lower <= Optimal <= Upper
// always holds for a built plan.
type EntryZone struct {
	Lower   float64
	Upper   float64
	Optimal float64
}

// Plan is the executable trade recommendation. Invariants for a valid
// plan: long implies stop < optimal < T1 < T2; short implies
// T2 < T1 < optimal < stop; risk-reward at T2 is at or above the
// configured minimum.
type Plan struct {
	ID             string
	SignalID       string
	Instrument     string
	InstrumentType InstrumentType
	Direction      Direction

	Entry    EntryZone
	StopLoss float64
	Target1  float64
	Target2  float64

	RiskPoints     float64
	RewardPointsT1 float64
	RewardPointsT2 float64
	RiskRewardT1   float64
	RiskRewardT2   float64

	PositionLots int
	LotSize      int
	RiskAmount   float64

	Status           Status
	Valid            bool
	RejectionReasons []string
	Reasoning        []string
	Confidence       float64

	CreatedAt time.Time
	ExpiresAt time.Time
}
