package market

import (
	"time"
)

// Status is the validation outcome for a snapshot.
type Status string

const (
	StatusValid        Status = "valid"
	StatusStale        Status = "stale"
	StatusIncomplete   Status = "incomplete"
	StatusOutsideHours Status = "outside_hours"
	StatusInvalid      Status = "invalid"
)

// Result is the stateless validator's verdict on one snapshot.
type Result struct {
	Valid           bool
	Status          Status
	LatencyMs       float64
	StalenessSec    float64
	InOpeningRange  bool
	Errors          []string
	Warnings        []string
}

// HoursConfig is the subset of configuration the validator needs to
// evaluate trading-hours checks, kept separate from package config to
// avoid an import cycle and to keep Validator stateless and testable
// in isolation.
type HoursConfig struct {
	Location        *time.Location
	MarketOpen      time.Duration
	MarketClose     time.Duration
	OpeningRangeEnd time.Duration
}

// Validator is stateless: every call is a pure function of its inputs.
type Validator struct {
	MaxStaleness time.Duration
	MaxLatency   time.Duration
	Hours        HoursConfig
}

// NewValidator builds a Validator from the documented defaults,
// overridable by the caller.
func NewValidator(maxStaleness, maxLatency time.Duration, hours HoursConfig) *Validator {
	return &Validator{MaxStaleness: maxStaleness, MaxLatency: maxLatency, Hours: hours}
}

// Validate runs the staleness, latency, completeness and hours checks, in order, against
// `now`. checkTradingHours lets callers (e.g. backtests) skip the
// calendar check entirely.
func (v *Validator) Validate(s Snapshot, now time.Time, checkTradingHours bool) Result {
	res := Result{Status: StatusValid, Valid: true}

	age := now.Sub(s.Timestamp)
	res.StalenessSec = age.Seconds()
	res.LatencyMs = age.Seconds() * 1000

	if age > v.MaxStaleness {
		res.Valid = false
		res.Status = StatusStale
		res.Errors = append(res.Errors, "snapshot is stale")
	}

	if res.LatencyMs > float64(v.MaxLatency.Milliseconds()) {
		res.Warnings = append(res.Warnings, "snapshot latency exceeds configured max")
	}

	if errs := completenessErrors(s); len(errs) > 0 {
		res.Errors = append(res.Errors, errs...)
		if res.Valid {
			res.Valid = false
			res.Status = StatusIncomplete
		}
	}

	if checkTradingHours {
		local := now.In(v.Hours.Location)
		if !withinTradingHours(local, v.Hours) {
			res.Valid = false
			res.Status = StatusOutsideHours
			res.Errors = append(res.Errors, "outside trading hours")
		}
		res.InOpeningRange = withinOpeningRange(local, v.Hours)
	}

	return res
}

func completenessErrors(s Snapshot) []string {
	var errs []string
	if s.Spot.LTP <= 0 {
		errs = append(errs, "spot price must be positive")
	}
	if s.Futures.Price <= 0 {
		errs = append(errs, "futures price must be positive")
	}
	if len(s.OptionsChain.Calls) == 0 {
		errs = append(errs, "options chain has no calls")
	}
	if len(s.OptionsChain.Puts) == 0 {
		errs = append(errs, "options chain has no puts")
	}
	if s.VIX.Value <= 0 {
		errs = append(errs, "VIX value must be positive")
	}
	if s.Spot.PreviousClose <= 0 {
		errs = append(errs, "spot previous close must be positive")
	}
	if s.VIX.PreviousClose <= 0 {
		errs = append(errs, "VIX previous close must be positive")
	}
	return errs
}

func withinTradingHours(local time.Time, h HoursConfig) bool {
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	tod := timeOfDay(local)
	return tod >= h.MarketOpen && tod <= h.MarketClose
}

func withinOpeningRange(local time.Time, h HoursConfig) bool {
	tod := timeOfDay(local)
	return tod >= h.MarketOpen && tod <= h.OpeningRangeEnd
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}
