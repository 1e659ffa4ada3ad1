package models

type ParamType string

const ParamTypeString ParamType = "string"

const (
	FinishSuccess = "SUCCESS"
	FinishFailure = "FAILURE"
)

type Param struct {
	Name     string
	Type     ParamType
	Required bool
	Enum     []string
}

// ToolSpec is immutable after startup. The same set is advertised to the
// model on every turn.
type ToolSpec struct {
	Name        string
	Description string
	Params      []Param
}

func (s ToolSpec) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// FinishPayload is the one structured tool result the loop interprets.
type FinishPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
