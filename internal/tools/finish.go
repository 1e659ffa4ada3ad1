package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mpataki/mend/internal/models"
)

// finishTool only packages its arguments; ending the run is the loop's call.
type finishTool struct{}

func (t *finishTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "finish",
		Description: "Use this function to signal the completion of your task, either in success or failure.",
		Params: []models.Param{
			{Name: "status", Type: models.ParamTypeString, Required: true, Enum: []string{models.FinishSuccess, models.FinishFailure}},
			{Name: "message", Type: models.ParamTypeString, Required: true},
		},
	}
}

func (t *finishTool) Execute(_ context.Context, args map[string]any) string {
	status, _ := args["status"].(string)
	message, _ := args["message"].(string)
	payload, err := json.Marshal(models.FinishPayload{Status: status, Message: message})
	if err != nil {
		return fmt.Sprintf("Error encoding finish payload: %v", err)
	}
	return string(payload)
}
