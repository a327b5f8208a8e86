package risk

import "fmt"

// SameBarPolicy decides the order in which a bar's range is tested when it
// reaches both the stop and an untriggered take-profit.
type SameBarPolicy string

const (
	// StopFirst assumes the stop traded first. This is the default and the
	// conservative choice; it is a stated rule, not an approximation.
	StopFirst SameBarPolicy = "stop_first"
	// TargetFirst processes take-profits before testing the (possibly moved) stop.
	TargetFirst SameBarPolicy = "target_first"
)

type TrailingPolicy struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Trailing starts once the close is ActivationATR ATRs beyond the first target.
	ActivationATR float64 `json:"activation_atr" yaml:"activation_atr"`

	// The trailing stop sits TrailATR ATRs behind the close.
	TrailATR float64 `json:"trail_atr" yaml:"trail_atr"`
}

// Policy configures the position state machine.
type Policy struct {
	// Number of take-profit hits after which the stop moves to entry. 0 disables breakeven.
	BreakevenAfterTP int `json:"breakeven_after_tp" yaml:"breakeven_after_tp"`

	Trailing TrailingPolicy `json:"trailing" yaml:"trailing"`
	SameBar  SameBarPolicy  `json:"same_bar" yaml:"same_bar"`

	// Close unfilled positions after this many bars. 0 keeps them pending indefinitely.
	PendingExpiryBars int `json:"pending_expiry_bars" yaml:"pending_expiry_bars"`
}

func DefaultPolicy() Policy {
	return Policy{
		BreakevenAfterTP: 1,
		Trailing: TrailingPolicy{
			Enabled:       true,
			ActivationATR: 1.0,
			TrailATR:      2.5,
		},
		SameBar:           StopFirst,
		PendingExpiryBars: 0,
	}
}

func (p Policy) Validate() error {
	if p.BreakevenAfterTP < 0 {
		return fmt.Errorf("risk: breakeven_after_tp must be >= 0")
	}
	if p.Trailing.Enabled {
		if p.Trailing.ActivationATR < 0 {
			return fmt.Errorf("risk: trailing.activation_atr must be >= 0")
		}
		if p.Trailing.TrailATR <= 0 {
			return fmt.Errorf("risk: trailing.trail_atr must be positive")
		}
	}
	switch p.SameBar {
	case StopFirst, TargetFirst:
	default:
		return fmt.Errorf("risk: unknown same_bar policy %q", p.SameBar)
	}
	if p.PendingExpiryBars < 0 {
		return fmt.Errorf("risk: pending_expiry_bars must be >= 0")
	}
	return nil
}
