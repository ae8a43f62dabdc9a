package domain

import "time"

// AgentStatus is the lifecycle state of an Agent.
type AgentStatus string

const (
	AgentCreated    AgentStatus = "created"
	AgentActive     AgentStatus = "active"
	AgentTerminated AgentStatus = "terminated"
)

// AdminAgentID is the sentinel id of the always-present admin agent.
const AdminAgentID = "admin"

// Agent is a logical worker identity with a token, capabilities, and an
// optional current task assignment.
type Agent struct {
	AgentID         string
	Token           string
	Capabilities    []string
	Status          AgentStatus
	CurrentTask     *string
	WorkingDir      string
	Role            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FileClaim records that an agent holds exclusive ownership of a file path.
type FileClaim struct {
	FilePath  string    `db:"file_path"`
	AgentID   string    `db:"agent_id"`
	ClaimedAt time.Time `db:"claimed_at"`
}

// AgentMessage is a point-to-point or broadcast message between agents.
type AgentMessage struct {
	MessageID string
	FromAgent string
	ToAgent   *string
	Payload   string
	SentAt    time.Time
	ReadAt    *time.Time
}
