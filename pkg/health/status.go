package health

// Status is the outcome of one health check.
type Status int

const (
	// NotStarted means the check has not run yet.
	NotStarted Status = iota

	// Waiting means the check is still polling.
	Waiting

	// Healthy means the check reached a positive terminal answer.
	Healthy

	// Unhealthy means the check reached a negative terminal answer.
	Unhealthy

	// TimedOut means the check exhausted its attempts without a terminal
	// answer.
	TimedOut
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Waiting:
		return "waiting"
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// OK reports whether the check ended in the one acceptable state.
func (s Status) OK() bool {
	return s == Healthy
}
