package models

type FailureKind string

const (
	FailNone        FailureKind = ""
	FailFinish      FailureKind = "finish"
	FailNoAction    FailureKind = "no_action"
	FailUnknownTool FailureKind = "unknown_tool"
	FailBudget      FailureKind = "budget"
)

// Outcome is the terminal shape every run reduces to.
type Outcome struct {
	Success bool
	Message string
	Kind    FailureKind
	Turns   int
}

// Reason renders the failure for humans. The Message field stays the exact
// text the model supplied.
func (o Outcome) Reason() string {
	if o.Success {
		return ""
	}
	if o.Kind == FailFinish {
		return "Agent finished with failure: " + o.Message
	}
	return o.Message
}
