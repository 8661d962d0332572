package domain

import "time"

// Event names, in the only orderings the channel may produce: job-start, plan,
// then per agent in plan order agent-start / agent-progress* / agent-complete,
// closed by exactly one job-complete or job-error.
const (
	EventJobStart      = "job-start"
	EventPlan          = "plan"
	EventAgentStart    = "agent-start"
	EventAgentProgress = "agent-progress"
	EventAgentComplete = "agent-complete"
	EventJobComplete   = "job-complete"
	EventJobError      = "job-error"
)

// Event is one named message pushed over the one-way channel. Data is one of
// the payload structs below; delivery order is emission order.
type Event struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

type JobStartPayload struct {
	JobID     string    `json:"jobId"`
	CreatedAt time.Time `json:"createdAt"`
}

type PlanPayload struct {
	Agents []AgentSpec `json:"agents"`
}

// AgentBrief is the spec without the step count, as shown on agent-start.
type AgentBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type AgentStartPayload struct {
	Agent AgentBrief `json:"agent"`
}

type AgentProgressPayload struct {
	ID       string `json:"id"`
	Progress int    `json:"progress"`
	Log      string `json:"log"`
}

type AgentCompletePayload struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

type JobCompletePayload struct {
	JobID  string  `json:"jobId"`
	Result *Result `json:"result"`
}

type JobErrorPayload struct {
	Message string `json:"message"`
	AgentID string `json:"agentId,omitempty"`
}
