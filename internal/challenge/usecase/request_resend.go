package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
)

type RequestResendInput struct {
	PendingID string `validate:"required,uuid"`
}

// RequestResend records that the user asked for a new code.
func (s *Usecase) RequestResend(ctx context.Context, in RequestResendInput) (*Directive, error) {
	ctx, span := s.startSpan(ctx, "RequestResend")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	rec, err := s.load(ctx, in.PendingID)
	if err != nil {
		return nil, err
	}

	switch rec.State {
	case entity.StateNew, entity.StateVerified:
		return s.next(ctx, rec)
	}

	rec.ResendRequested = true
	if err := s.transition(ctx, rec, entity.StateResendPending, ""); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "challenge resend requested", "pending_id", rec.ID)

	return redirect(StepPromptResend, rec.ID), nil
}
