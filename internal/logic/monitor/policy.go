package monitor

// Action is the outcome of evaluating one usage sample.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionDestroy
)

// Decision pairs an action with the threshold that triggered it.
// Threshold is meaningful only for ActionWarn.
type Decision struct {
	Action    Action
	Threshold int
}

// Policy decides what to do with a usage sample. Destroy takes priority
// over a staged warning for the same sample: once a server is over the hard
// limit there is no point recording another warning stage for it.
type Policy struct {
	tracker        *Tracker
	thresholds     []int
	destroyPercent int
}

// NewPolicy creates a policy over the given ascending notification
// thresholds and hard destroy limit.
func NewPolicy(tracker *Tracker, thresholds []int, destroyPercent int) *Policy {
	return &Policy{
		tracker:        tracker,
		thresholds:     thresholds,
		destroyPercent: destroyPercent,
	}
}

// Decide maps a usage percentage to an action. A warn decision updates the
// tracker's staging state as a side effect; a destroy decision leaves it
// untouched (the reset happens only after the destroy is confirmed).
func (p *Policy) Decide(serverName string, usagePercent float64) Decision {
	if usagePercent >= float64(p.destroyPercent) {
		return Decision{Action: ActionDestroy}
	}

	if threshold, ok := p.tracker.Evaluate(serverName, usagePercent, p.thresholds); ok {
		return Decision{Action: ActionWarn, Threshold: threshold}
	}

	return Decision{Action: ActionNone}
}
