package websocket

// Actions (Client → Server)

type Action string

const (
	ActionPing     Action = "ping"
	ActionAnswer   Action = "answer"
	ActionBehavior Action = "behavior"
	ActionProgress Action = "progress"
)

// RequestPayload carries every client message. Fields beyond Action are
// consulted per action.
type RequestPayload struct {
	Action Action `json:"action"`
	// Answer action
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
	// Behavior action
	Description string `json:"description,omitempty"`
}

// Events (Server → Client)

type Event string

const (
	EventError    Event = "error"
	EventSuccess  Event = "success"
	EventPong     Event = "pong"
	EventProgress Event = "progress"
	EventFinished Event = "finished"
)

type SuccessResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type ProgressResponse struct {
	Event             Event `json:"event"`
	TotalQuestions    int   `json:"total_questions"`
	AnsweredQuestions int   `json:"answered_questions"`
	RemainingMinutes  int   `json:"remaining_minutes"`
	IsTimeout         bool  `json:"is_timeout"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
