package entity

import "time"

// ChallengeEvent reports a state transition to the authentication pipeline.
type ChallengeEvent struct {
	PendingID  string
	State      State
	Strategy   Strategy
	Reason     string
	OccurredAt time.Time
}
