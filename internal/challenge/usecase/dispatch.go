package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
	"github.com/shandysiswandi/stepup/internal/pkg/idempotency"
	"github.com/shandysiswandi/stepup/internal/pkg/phone"
	"github.com/shandysiswandi/stepup/internal/pkg/sms"
)

type DispatchInput struct {
	PendingID string `validate:"required,uuid"`
}

// Dispatch issues a code for the pending challenge and sends it.
func (s *Usecase) Dispatch(ctx context.Context, in DispatchInput) (*Directive, error) {
	ctx, span := s.startSpan(ctx, "Dispatch")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	rec, err := s.load(ctx, in.PendingID)
	if err != nil {
		return nil, err
	}

	switch rec.State {
	case entity.StateVerified:
		return nil, s.inconsistent(ctx, rec, "Dispatch")
	case entity.StateSent, entity.StateInvalid:
		// a new code is only sent through RequestResend
		slog.InfoContext(ctx, "challenge already sent", "pending_id", rec.ID, "state", rec.State.String())
		return redirect(StepEnterCode, rec.ID), nil
	}

	var out *Directive
	key := "challenge:dispatch:" + rec.ID + ":" + rec.State.String()
	err = s.idemp.Exec(ctx, key, func(ctx context.Context) error {
		var errDispatch error
		out, errDispatch = s.dispatch(ctx, rec)
		return errDispatch
	},
		idempotency.WithLockDuration(s.settings.ProviderTimeout+time.Second),
		idempotency.WithStateTTL(s.settings.DispatchGuard),
	)
	if idempotency.IsDuplicate(err) {
		slog.InfoContext(ctx, "duplicate dispatch suppressed", "pending_id", rec.ID, "reason", err.Error())
		return s.afterDuplicateDispatch(ctx, rec.ID, err)
	}
	if err != nil {
		if _, ok := goerror.As(err); ok {
			return nil, err
		}
		slog.ErrorContext(ctx, "failed to guard dispatch", "pending_id", rec.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return out, nil
}

func (s *Usecase) dispatch(ctx context.Context, rec *entity.ChallengeRequest) (*Directive, error) {
	rec.ResetIssuance()
	rec.Strategy = s.verifier.Strategy()

	err := s.verifier.IssueAndTrack(ctx, rec)
	if err == nil {
		if err := s.transition(ctx, rec, entity.StateSent, ""); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "challenge sent", "pending_id", rec.ID, "recipient", phone.Mask(rec.Recipient))
		return redirect(StepEnterCode, rec.ID), nil
	}

	if !errors.Is(err, sms.ErrProvider) {
		slog.ErrorContext(ctx, "failed to issue challenge", "pending_id", rec.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.WarnContext(ctx, "provider failed to send challenge", "pending_id", rec.ID, "error", err)

	rec.LastFailureReason = sendFailureReason(err)
	if err := s.transition(ctx, rec, entity.StateSendFailed, rec.LastFailureReason); err != nil {
		return nil, err
	}

	return redirect(StepPromptResend, rec.ID), nil
}

// afterDuplicateDispatch sends a repeated click to wherever the first one led.
// While the first send is still running the user is sent to code entry.
func (s *Usecase) afterDuplicateDispatch(ctx context.Context, pendingID string, dup error) (*Directive, error) {
	if errors.Is(dup, idempotency.ErrAlreadyInProgress) {
		return redirect(StepEnterCode, pendingID), nil
	}

	rec, err := s.load(ctx, pendingID)
	if err != nil {
		return nil, err
	}

	return s.next(ctx, rec)
}

func sendFailureReason(err error) string {
	var perr *sms.ProviderError
	if errors.As(err, &perr) && perr.Timeout {
		return msgSendTimeout
	}
	return msgSendFailed
}
