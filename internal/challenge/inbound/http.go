package inbound

import (
	"context"

	"github.com/shandysiswandi/stepup/internal/challenge/usecase"
	"github.com/shandysiswandi/stepup/internal/pkg/router"
)

type uc interface {
	Begin(ctx context.Context, in usecase.BeginInput) (*usecase.Directive, error)
	Dispatch(ctx context.Context, in usecase.DispatchInput) (*usecase.Directive, error)

	EnterCode(ctx context.Context, in usecase.EnterCodeInput) (*usecase.Directive, error)
	Submit(ctx context.Context, in usecase.SubmitInput) (*usecase.Directive, error)

	PromptResend(ctx context.Context, in usecase.PromptResendInput) (*usecase.Directive, error)
	RequestResend(ctx context.Context, in usecase.RequestResendInput) (*usecase.Directive, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/v1/challenges", end.Begin)
	r.POST("/api/v1/challenges/:id/send", end.Dispatch) // send-code
	//
	r.GET("/api/v1/challenges/:id/code", end.EnterCode) // enter-code
	r.POST("/api/v1/challenges/:id/code", end.Submit)   // validate-code
	//
	r.GET("/api/v1/challenges/:id/resend", end.PromptResend) // prompt-resend
	r.POST("/api/v1/challenges/:id/resend", end.RequestResend)
}
