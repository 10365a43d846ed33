package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
	"github.com/shandysiswandi/stepup/internal/pkg/phone"
	"github.com/shandysiswandi/stepup/internal/pkg/sms"
)

type BeginInput struct {
	// Attributes are the user attributes released by the pipeline.
	Attributes map[string][]string
	// IsPassive is set when no user can interact with the flow.
	IsPassive bool
	// PipelineState is handed back untouched on resume.
	PipelineState string `validate:"max=2048"`
}

// Begin creates a pending challenge for the user's mobile number.
func (s *Usecase) Begin(ctx context.Context, in BeginInput) (*Directive, error) {
	ctx, span := s.startSpan(ctx, "Begin")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if in.IsPassive {
		slog.WarnContext(ctx, "passive authentication cannot complete sms step-up")
		return nil, goerror.NewBusinessWrap(entity.ErrInteractionRequired, msgInteraction, goerror.CodeForbidden)
	}

	raw := firstValue(in.Attributes[s.settings.MobileAttribute])
	if raw == "" {
		slog.WarnContext(ctx, "mobile attribute missing", "attribute", s.settings.MobileAttribute)
		return nil, goerror.NewBusinessWrap(entity.ErrMissingAttribute, msgMissingMobile, goerror.CodeInvalidInput)
	}

	recipient, err := s.phone.Normalize(raw)
	if err != nil {
		slog.WarnContext(ctx, "mobile attribute is not a valid number", "attribute", s.settings.MobileAttribute, "error", err)
		return nil, goerror.NewBusinessWrap(errors.Join(entity.ErrInvalidPhoneNumber, err), msgInvalidMobile, goerror.CodeInvalidInput)
	}

	if err := sms.ValidateOriginator(s.settings.Originator); err != nil {
		slog.ErrorContext(ctx, "configured originator is invalid", "originator", s.settings.Originator, "error", err)
		return nil, goerror.NewServer(errors.Join(entity.ErrConfiguration, err))
	}

	rec := &entity.ChallengeRequest{
		ID:              s.uuid.Generate(),
		Strategy:        s.verifier.Strategy(),
		Recipient:       recipient,
		Originator:      s.settings.Originator,
		CodeLength:      s.settings.CodeLength,
		ValidForSeconds: s.settings.ValidForSeconds,
		MessageTemplate: s.settings.MessageTemplate,
		AllowPush:       s.settings.AllowPush,
		AppKey:          s.settings.AppKey,
		PipelineState:   in.PipelineState,
	}

	if err := s.transition(ctx, rec, entity.StateNew, ""); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "challenge created", "pending_id", rec.ID, "recipient", phone.Mask(recipient), "strategy", rec.Strategy.String())

	return redirect(StepSendCode, rec.ID), nil
}

func firstValue(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
