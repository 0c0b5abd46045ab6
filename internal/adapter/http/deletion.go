package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// WorkflowResponse is the API representation of a deletion workflow.
type WorkflowResponse struct {
	ID                 string `json:"id"`
	TenantID           string `json:"tenantId"`
	TenantName         string `json:"tenantName"`
	State              string `json:"state" enum:"confirm_warning,confirm_reauth,confirm_typed,executing,done,failed"`
	ConfirmationPhrase string `json:"confirmationPhrase" doc:"Text to type in the final step"`
	TotalBatches       int    `json:"totalBatches"`
	CommittedBatches   int    `json:"committedBatches"`
	Error              string `json:"error,omitempty"`
	StartedAt          string `json:"startedAt"`
	UpdatedAt          string `json:"updatedAt"`
}

func toWorkflowResponse(w domain.DeletionWorkflow) WorkflowResponse {
	return WorkflowResponse{
		ID:                 w.ID,
		TenantID:           w.TenantID,
		TenantName:         w.TenantName,
		State:              string(w.State),
		ConfirmationPhrase: domain.ConfirmationPhrase(w.TenantID),
		TotalBatches:       w.TotalBatches,
		CommittedBatches:   w.CommittedBatches,
		Error:              w.Error,
		StartedAt:          w.StartedAt.UTC().Format(timestampLayout),
		UpdatedAt:          w.UpdatedAt.UTC().Format(timestampLayout),
	}
}

type WorkflowOutput struct {
	Body WorkflowResponse
}

type WorkflowPathInput struct {
	ID string `path:"id" doc:"Deletion workflow ID"`
}

type ReauthenticateInput struct {
	ID   string `path:"id" doc:"Deletion workflow ID"`
	Body struct {
		Password string `json:"password" minLength:"1" doc:"The operator's current password"`
	}
}

type ConfirmDeletionInput struct {
	ID   string `path:"id" doc:"Deletion workflow ID"`
	Body struct {
		Phrase string `json:"phrase" doc:"Must equal the workflow's confirmation phrase"`
	}
}

func (h *handler) registerDeletions() {
	tags := []string{"Deletion"}

	huma.Register(h.api, secured(huma.Operation{
		OperationID:   "begin-deletion",
		Method:        http.MethodPost,
		Path:          apiPrefix + "/tenants/{id}/deletions",
		Summary:       "Start deleting a school",
		Description:   "Deletion takes three confirmations: acknowledge, reauthenticate, type the phrase.",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
	}), func(ctx context.Context, input *TenantPathInput) (*WorkflowOutput, error) {
		wf, err := h.Deletions.Begin(ctx, operatorUID(ctx), input.ID)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &WorkflowOutput{Body: toWorkflowResponse(wf)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "get-deletion",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/deletions/{id}",
		Summary:     "Get a deletion workflow",
		Tags:        tags,
	}), func(ctx context.Context, input *WorkflowPathInput) (*WorkflowOutput, error) {
		wf, err := h.Deletions.Workflow(ctx, operatorUID(ctx), input.ID)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &WorkflowOutput{Body: toWorkflowResponse(wf)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "acknowledge-deletion",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/deletions/{id}/acknowledge",
		Summary:     "Acknowledge the deletion warning",
		Tags:        tags,
	}), func(ctx context.Context, input *WorkflowPathInput) (*WorkflowOutput, error) {
		wf, err := h.Deletions.Acknowledge(ctx, operatorUID(ctx), input.ID)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &WorkflowOutput{Body: toWorkflowResponse(wf)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "reauthenticate-deletion",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/deletions/{id}/reauthenticate",
		Summary:     "Re-enter the operator password",
		Tags:        tags,
	}), func(ctx context.Context, input *ReauthenticateInput) (*WorkflowOutput, error) {
		wf, err := h.Deletions.Reauthenticate(ctx, operatorUID(ctx), input.ID, input.Body.Password)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &WorkflowOutput{Body: toWorkflowResponse(wf)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "confirm-deletion",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/deletions/{id}/confirm",
		Summary:     "Type the phrase and delete the school",
		Description: "Runs the cascading delete. A failure after some batches committed is reported as a partial failure (502); a failure before anything was deleted is a plain server error.",
		Tags:        tags,
	}), func(ctx context.Context, input *ConfirmDeletionInput) (*WorkflowOutput, error) {
		wf, err := h.Deletions.Confirm(ctx, operatorUID(ctx), input.ID, input.Body.Phrase)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &WorkflowOutput{Body: toWorkflowResponse(wf)}, nil
	})
}
