package models

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Action is one tool invocation proposed by the model. ID carries the
// provider's call id when it supplies one.
type Action struct {
	ID   string
	Tool string
	Args map[string]any
}

// Result is the local answer to an Action. IsError marks results the model
// should treat as a rejected call rather than tool output.
type Result struct {
	CallID  string
	Tool    string
	Content string
	IsError bool
}

// Turn holds free text, one proposed action, or one result.
type Turn struct {
	Role   Role
	Text   string
	Action *Action
	Result *Result
}

// Transcript is the append-only conversation for a single run. It is seeded
// with one priming turn and never persisted.
type Transcript struct {
	Turns []Turn
}

func NewTranscript(priming string) *Transcript {
	return &Transcript{Turns: []Turn{{Role: RoleUser, Text: priming}}}
}

func (t *Transcript) AppendProposal(text string, action *Action) {
	t.Turns = append(t.Turns, Turn{Role: RoleModel, Text: text, Action: action})
}

func (t *Transcript) AppendResult(res Result) {
	t.Turns = append(t.Turns, Turn{Role: RoleUser, Result: &res})
}

func (t *Transcript) Len() int {
	return len(t.Turns)
}
