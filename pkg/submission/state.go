package submission

import "fmt"

// State is the controller's position in Idle → Submitting → {Succeeded, Failed} → Idle.
type State int32

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Submitting:
		return "Submitting"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Outcome classifies a finished Submit call. The values double as metric labels.
type Outcome string

const (
	OutcomeSucceeded         Outcome = "succeeded"
	OutcomeDropped           Outcome = "dropped"
	OutcomeValidationFailed  Outcome = "validation_failed"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomePersistenceFailed Outcome = "persistence_failed"
)
