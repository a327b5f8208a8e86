package risk

// Inputs for fixed-fractional position sizing.
type Inputs struct {
	Equity     float64
	RiskPct    float64 // 0.02 = 2% of equity at risk
	EntryPrice float64
	StopPrice  float64

	// Caps notional at this fraction of equity. 0 disables the cap.
	MaxNotionalPct float64
}

type Result struct {
	Units        float64
	StopDistance float64
	RiskAmount   float64
	Notional     float64
	Capped       bool
}

// Calculate sizes a position so that hitting the stop loses RiskPct of equity,
// then applies the notional cap.
func Calculate(in Inputs) Result {
	dist := abs(in.EntryPrice - in.StopPrice)
	riskAmt := in.Equity * in.RiskPct
	if dist == 0 || in.EntryPrice <= 0 || riskAmt <= 0 {
		return Result{StopDistance: dist}
	}

	units := riskAmt / dist
	capped := false
	if in.MaxNotionalPct > 0 {
		maxUnits := in.Equity * in.MaxNotionalPct / in.EntryPrice
		if units > maxUnits {
			units = maxUnits
			capped = true
		}
	}

	return Result{
		Units:        units,
		StopDistance: dist,
		RiskAmount:   units * dist,
		Notional:     units * in.EntryPrice,
		Capped:       capped,
	}
}
