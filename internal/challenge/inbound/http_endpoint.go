package inbound

import (
	"github.com/shandysiswandi/stepup/internal/challenge/usecase"
	"github.com/shandysiswandi/stepup/internal/pkg/router"
)

// HTTPEndpoint exposes the step-up challenge operations to the authentication pipeline.
type HTTPEndpoint struct {
	uc uc
}

// Begin creates a pending challenge from the attributes released by the pipeline.
func (h *HTTPEndpoint) Begin(r *router.Request) (any, error) {
	var req BeginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Begin(r.Context(), usecase.BeginInput{
		Attributes:    req.Attributes,
		IsPassive:     req.Passive,
		PipelineState: req.PipelineState,
	})
	if err != nil {
		return nil, err
	}

	return toDirectiveResponse(resp), nil
}

// Dispatch sends the code for a pending challenge.
func (h *HTTPEndpoint) Dispatch(r *router.Request) (any, error) {
	resp, err := h.uc.Dispatch(r.Context(), usecase.DispatchInput{PendingID: r.GetParam("id")})
	if err != nil {
		return nil, err
	}

	return toDirectiveResponse(resp), nil
}

func (h *HTTPEndpoint) EnterCode(r *router.Request) (any, error) {
	resp, err := h.uc.EnterCode(r.Context(), usecase.EnterCodeInput{PendingID: r.GetParam("id")})
	if err != nil {
		return nil, err
	}

	return toDirectiveResponse(resp), nil
}

// Submit checks the code typed by the user.
func (h *HTTPEndpoint) Submit(r *router.Request) (any, error) {
	var req SubmitRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Submit(r.Context(), usecase.SubmitInput{
		PendingID: r.GetParam("id"),
		Code:      req.Code,
	})
	if err != nil {
		return nil, err
	}

	return toDirectiveResponse(resp), nil
}

func (h *HTTPEndpoint) PromptResend(r *router.Request) (any, error) {
	resp, err := h.uc.PromptResend(r.Context(), usecase.PromptResendInput{PendingID: r.GetParam("id")})
	if err != nil {
		return nil, err
	}

	return toDirectiveResponse(resp), nil
}

func (h *HTTPEndpoint) RequestResend(r *router.Request) (any, error) {
	resp, err := h.uc.RequestResend(r.Context(), usecase.RequestResendInput{PendingID: r.GetParam("id")})
	if err != nil {
		return nil, err
	}

	return toDirectiveResponse(resp), nil
}
