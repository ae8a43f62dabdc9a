package tasks

import "github.com/conclave-mcp/orchestrator/internal/domain"

// transitions is the adjacency list of the status FSM in spec.md §4.F.
// "pause" (in_progress -> pending) and "cancel" (any non-terminal -> cancelled)
// are both represented here alongside the straight-line start/finish/fail path.
var transitions = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskPending:    {domain.TaskInProgress, domain.TaskCancelled},
	domain.TaskInProgress: {domain.TaskCompleted, domain.TaskFailed, domain.TaskPending, domain.TaskCancelled},
}

// CanTransition reports whether from -> to is a legal edge of the FSM.
// Terminal states (spec.md: completed, cancelled, failed) have no entry in
// the table and so no outbound edges. from == to is always reported legal,
// terminal states included; UpdateStatus rejects a terminal source status
// before it consults this function.
func CanTransition(from, to domain.TaskStatus) bool {
	if from == to {
		return true
	}
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
