package risk

// State of a position. Closed is terminal.
type State string

const (
	Pending         State = "pending"
	Open            State = "open"
	PartiallyClosed State = "partially_closed"
	BreakevenArmed  State = "breakeven_armed"
	Trailing        State = "trailing"
	Closed          State = "closed"
)

// Filled reports whether the position is live in the market.
func (s State) Filled() bool {
	switch s {
	case Open, PartiallyClosed, BreakevenArmed, Trailing:
		return true
	}
	return false
}

type CloseReason string

const (
	StopHit        CloseReason = "stop_hit"
	AllTargetsHit  CloseReason = "all_targets_hit"
	ExternalCancel CloseReason = "external_cancel"
	Expired        CloseReason = "expired"
)
