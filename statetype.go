package eventhub

// StateType is the closed enum of shared-state kinds (spec §4.3): every
// extension owns one SharedStateManager per StateType.
type StateType int

const (
	StateTypeStandard StateType = iota
	StateTypeXDM
)

func (t StateType) String() string {
	switch t {
	case StateTypeXDM:
		return "XDM"
	default:
		return "STANDARD"
	}
}
