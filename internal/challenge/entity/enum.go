package entity

// State is the position of a challenge in its lifecycle.
type State string

const (
	StateNew           State = "new"
	StateSent          State = "sent"
	StateVerified      State = "verified"
	StateExpired       State = "expired"
	StateInvalid       State = "invalid"
	StateResendPending State = "resend_pending"
	StateSendFailed    State = "send_failed"
)

func (s State) String() string {
	return string(s)
}

// IsKnown reports whether s is one of the defined states.
func (s State) IsKnown() bool {
	switch s {
	case StateNew, StateSent, StateVerified, StateExpired, StateInvalid, StateResendPending, StateSendFailed:
		return true
	default:
		return false
	}
}

// Strategy selects who holds and checks the secret code.
type Strategy string

const (
	// StrategyLocal generates the code here, stores its hash and sends a
	// plain text message.
	StrategyLocal Strategy = "local"
	// StrategyDelegated lets the provider generate, deliver and verify the code.
	StrategyDelegated Strategy = "delegated"
)

func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy maps a configuration value to a Strategy. Empty selects
// StrategyDelegated.
func ParseStrategy(raw string) (Strategy, bool) {
	switch Strategy(raw) {
	case "", StrategyDelegated:
		return StrategyDelegated, true
	case StrategyLocal:
		return StrategyLocal, true
	default:
		return "", false
	}
}
