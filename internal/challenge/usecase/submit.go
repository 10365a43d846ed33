package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
	"github.com/shandysiswandi/stepup/internal/pkg/sms"
)

type SubmitInput struct {
	PendingID string `validate:"required,uuid"`
	Code      string
}

// Submit checks a user supplied code. The validity window is checked before
// the code, so a correct but late code still expires the challenge.
func (s *Usecase) Submit(ctx context.Context, in SubmitInput) (*Directive, error) {
	ctx, span := s.startSpan(ctx, "Submit")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	rec, err := s.load(ctx, in.PendingID)
	if err != nil {
		return nil, err
	}

	if rec.State == entity.StateVerified {
		return s.resume(ctx, rec)
	}

	if !rec.Issued() || rec.Strategy != s.verifier.Strategy() {
		return nil, s.inconsistent(ctx, rec, "Submit")
	}

	if !rec.InWindow(s.clock.Now()) {
		slog.InfoContext(ctx, "challenge code expired", "pending_id", rec.ID)

		rec.Expired = true
		rec.Invalid = false
		if err := s.transition(ctx, rec, entity.StateExpired, msgExpired); err != nil {
			return nil, err
		}
		return redirect(StepPromptResend, rec.ID), nil
	}

	rec.Attempts++

	code := strings.TrimSpace(in.Code)
	match := false
	if wellFormed(code, rec.CodeLength) {
		match, err = s.verifier.CheckSubmission(ctx, rec, code)
	}
	if err != nil {
		if !errors.Is(err, sms.ErrProvider) {
			slog.ErrorContext(ctx, "failed to check challenge code", "pending_id", rec.ID, "error", err)
			return nil, goerror.NewServer(err)
		}

		slog.WarnContext(ctx, "provider failed to verify challenge", "pending_id", rec.ID, "error", err)
		rec.LastFailureReason = msgVerifyFailed
		if err := s.transition(ctx, rec, entity.StateSendFailed, msgVerifyFailed); err != nil {
			return nil, err
		}
		return redirect(StepPromptResend, rec.ID), nil
	}

	if !match {
		slog.InfoContext(ctx, "challenge code mismatch", "pending_id", rec.ID, "attempts", rec.Attempts)

		rec.Invalid = true
		if err := s.transition(ctx, rec, entity.StateInvalid, ""); err != nil {
			return nil, err
		}
		return redirect(StepEnterCode, rec.ID), nil
	}

	rec.Invalid = false
	rec.Expired = false
	rec.ResendRequested = false
	rec.LastFailureReason = ""
	if err := s.transition(ctx, rec, entity.StateVerified, ""); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "challenge verified", "pending_id", rec.ID, "attempts", rec.Attempts)

	return s.resume(ctx, rec)
}

func wellFormed(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
