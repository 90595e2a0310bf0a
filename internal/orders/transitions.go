package orders

// TransitionPolicy decides whether an order may move from one status to another.
type TransitionPolicy func(from, to Status) bool

// AllowAnyTransition accepts every move between known statuses, including
// moves back to an earlier stage, so admins can correct mistakes by hand.
func AllowAnyTransition(from, to Status) bool {
	return true
}

// StrictTransitions is the forward-only lifecycle. It is not wired by
// default; set EngineConfig.Transitions to StrictTransitions.Allows to
// enforce it.
var StrictTransitions = TransitionTable{
	StatusPending: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

// TransitionTable maps a status to the statuses reachable from it.
type TransitionTable map[Status][]Status

// Allows implements TransitionPolicy.
func (t TransitionTable) Allows(from, to Status) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}
