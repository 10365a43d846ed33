package usecase

import (
	"context"

	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
)

type PromptResendInput struct {
	PendingID string `validate:"required,uuid"`
}

// PromptResend renders why the user is asked to request a new code.
func (s *Usecase) PromptResend(ctx context.Context, in PromptResendInput) (*Directive, error) {
	ctx, span := s.startSpan(ctx, "PromptResend")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	rec, err := s.load(ctx, in.PendingID)
	if err != nil {
		return nil, err
	}

	var msg string
	switch {
	case rec.Expired:
		msg = msgExpired
	case rec.LastFailureReason != "":
		msg = rec.LastFailureReason
	case rec.ResendRequested:
		msg = ""
	default:
		return nil, s.inconsistent(ctx, rec, "PromptResend")
	}

	return render(StepPromptResend, rec.ID, PromptResendView{Message: msg}), nil
}
