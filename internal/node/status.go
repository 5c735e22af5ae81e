package node

// Status is the execution status of a node in the graph.
type Status int32

const (
	// StatusScheduled indicates the node is queued for a future time.
	StatusScheduled Status = iota
	// StatusPending indicates the node is queued and ready to run once dispatched.
	StatusPending
	// StatusRunning indicates the node is currently being executed by an instance.
	StatusRunning
	// StatusSucceeded indicates the node completed with no messages.
	StatusSucceeded
	// StatusWarnings indicates the node completed with only warning-level messages.
	StatusWarnings
	// StatusErrors indicates the node completed with error-level messages present.
	StatusErrors
	// StatusExceptions indicates the node did not complete; an unrecoverable
	// exception occurred.
	StatusExceptions
	// StatusCancelled indicates the node was Pending or Scheduled and was
	// cancelled before running.
	StatusCancelled
	// StatusInterrupted indicates the node was Running and was cancelled or
	// timed out mid-execution.
	StatusInterrupted
	// StatusSkipped indicates the node was explicitly skipped by policy.
	StatusSkipped
	// StatusLocked indicates execution is disallowed because the node or
	// document is locked.
	StatusLocked
	// StatusRejected indicates the node was skipped because it is a rejected
	// suggestion.
	StatusRejected
	// StatusEmpty indicates the node was skipped because its code is empty.
	StatusEmpty
)

var statusNames = map[Status]string{
	StatusScheduled:   "Scheduled",
	StatusPending:     "Pending",
	StatusRunning:     "Running",
	StatusSucceeded:   "Succeeded",
	StatusWarnings:    "Warnings",
	StatusErrors:      "Errors",
	StatusExceptions:  "Exceptions",
	StatusCancelled:   "Cancelled",
	StatusInterrupted: "Interrupted",
	StatusSkipped:     "Skipped",
	StatusLocked:      "Locked",
	StatusRejected:    "Rejected",
	StatusEmpty:       "Empty",
}

// String returns the canonical name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether the status is a final outcome. Only Scheduled,
// Pending and Running are non-terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusScheduled, StatusPending, StatusRunning:
		return false
	}
	return true
}

// Failed reports whether the status counts as a failed terminal outcome for
// the purpose of a dependant's dependenciesFailed count.
func (s Status) Failed() bool {
	switch s {
	case StatusErrors, StatusExceptions, StatusCancelled, StatusInterrupted:
		return true
	}
	return false
}

// validTransitions encodes the state machine's legal moves. Initial statuses
// (the eligibility set plus Pending/Scheduled) are reachable from any state
// at the start of a scheduling round, so the table only constrains moves that
// happen while a round is in flight.
var validTransitions = map[Status][]Status{
	StatusScheduled: {StatusPending, StatusRunning, StatusCancelled},
	StatusPending:   {StatusRunning, StatusCancelled},
	StatusRunning: {
		StatusSucceeded, StatusWarnings, StatusErrors,
		StatusExceptions, StatusInterrupted,
	},
}

// CanTransition reports whether moving from one status to another is legal
// while an execution round is in flight.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusFromMessages chooses the terminal outcome of a completed run by
// aggregating message severity. An unrecoverable exception reported by the
// executor forces Exceptions regardless of message levels.
func StatusFromMessages(messages []ExecutionMessage, exceptionRaised bool) Status {
	if exceptionRaised {
		return StatusExceptions
	}
	status := StatusSucceeded
	for _, m := range messages {
		switch m.Level {
		case LevelError:
			status = StatusErrors
		case LevelWarning:
			if status == StatusSucceeded {
				status = StatusWarnings
			}
		}
	}
	return status
}
