package inbound

import (
	"time"

	"github.com/shandysiswandi/stepup/internal/challenge/usecase"
)

type BeginRequest struct {
	Attributes    map[string][]string `json:"attributes"`
	Passive       bool                `json:"passive"`
	PipelineState string              `json:"pipeline_state"`
}

type SubmitRequest struct {
	Code string `json:"code"`
}

type EnterCodeData struct {
	MaskedRecipient string    `json:"masked_recipient"`
	CodeLength      int       `json:"code_length"`
	Invalid         bool      `json:"invalid"`
	ValidUntil      time.Time `json:"valid_until"`
}

type PromptResendData struct {
	Message string `json:"message"`
}

type DirectiveResponse struct {
	Kind          string `json:"kind"`
	Step          string `json:"step,omitempty"`
	PendingID     string `json:"pending_id"`
	View          string `json:"view,omitempty"`
	Data          any    `json:"data,omitempty"`
	ResumeToken   string `json:"resume_token,omitempty"`
	PipelineState string `json:"pipeline_state,omitempty"`
}

func (r DirectiveResponse) Message() string {
	switch usecase.Kind(r.Kind) {
	case usecase.KindRender:
		return "Render the requested view."
	case usecase.KindResume:
		return "Verification complete. Resume authentication."
	default:
		return "Continue with the next step."
	}
}

func toDirectiveResponse(d *usecase.Directive) DirectiveResponse {
	resp := DirectiveResponse{
		Kind:          string(d.Kind),
		Step:          string(d.Step),
		PendingID:     d.PendingID,
		View:          d.View,
		ResumeToken:   d.ResumeToken,
		PipelineState: d.PipelineState,
	}

	switch data := d.Data.(type) {
	case usecase.EnterCodeView:
		resp.Data = EnterCodeData{
			MaskedRecipient: data.MaskedRecipient,
			CodeLength:      data.CodeLength,
			Invalid:         data.Invalid,
			ValidUntil:      data.ValidUntil,
		}
	case usecase.PromptResendView:
		resp.Data = PromptResendData{Message: data.Message}
	}

	return resp
}
