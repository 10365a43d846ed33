package usecase

import (
	"context"

	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
	"github.com/shandysiswandi/stepup/internal/pkg/phone"
)

type EnterCodeInput struct {
	PendingID string `validate:"required,uuid"`
}

// EnterCode renders the code entry page for a sent challenge. Records in any
// other state are redirected to the step they belong to.
func (s *Usecase) EnterCode(ctx context.Context, in EnterCodeInput) (*Directive, error) {
	ctx, span := s.startSpan(ctx, "EnterCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	rec, err := s.load(ctx, in.PendingID)
	if err != nil {
		return nil, err
	}

	if rec.State != entity.StateSent && rec.State != entity.StateInvalid {
		return s.next(ctx, rec)
	}

	_, validUntil := rec.Window()

	return render(StepEnterCode, rec.ID, EnterCodeView{
		MaskedRecipient: phone.Mask(rec.Recipient),
		CodeLength:      rec.CodeLength,
		Invalid:         rec.Invalid,
		ValidUntil:      validUntil,
	}), nil
}
