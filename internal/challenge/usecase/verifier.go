package usecase

import (
	"context"
	"errors"

	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/pkg/clock"
	"github.com/shandysiswandi/stepup/internal/pkg/hash"
	"github.com/shandysiswandi/stepup/internal/pkg/otp"
	"github.com/shandysiswandi/stepup/internal/pkg/sms"
)

var errSecretCodec = errors.New("challenge: secret codec failed")

// Verifier issues a code for a record and checks submissions against it.
//
// IssueAndTrack populates only its own strategy's fields and leaves rec
// untouched on failure. Provider failures satisfy errors.Is(err, sms.ErrProvider).
type Verifier interface {
	Strategy() entity.Strategy
	IssueAndTrack(ctx context.Context, rec *entity.ChallengeRequest) error
	CheckSubmission(ctx context.Context, rec *entity.ChallengeRequest, candidate string) (bool, error)
}

// localVerifier generates the code here and keeps only its hash.
type localVerifier struct {
	otp    otp.Generator
	codec  hash.Hash
	sender sms.MessageSender
	clock  clock.Clocker
}

func newLocalVerifier(gen otp.Generator, codec hash.Hash, sender sms.MessageSender, clk clock.Clocker) *localVerifier {
	return &localVerifier{otp: gen, codec: codec, sender: sender, clock: clk}
}

func (*localVerifier) Strategy() entity.Strategy { return entity.StrategyLocal }

func (v *localVerifier) IssueAndTrack(ctx context.Context, rec *entity.ChallengeRequest) error {
	code, err := v.otp.Generate(rec.CodeLength)
	if err != nil {
		return err
	}

	secret, err := v.codec.Hash(code)
	if err != nil {
		return errors.Join(errSecretCodec, err)
	}

	issuedAt := v.clock.Now()
	if err := v.sender.SendMessage(ctx, sms.TextMessage{
		Recipient:  rec.Recipient,
		Originator: rec.Originator,
		Body:       sms.Render(rec.MessageTemplate, code),
		Reference:  rec.ID,
	}); err != nil {
		return err
	}

	rec.SecretHash = string(secret)
	rec.CreatedAt = issuedAt
	return nil
}

func (v *localVerifier) CheckSubmission(_ context.Context, rec *entity.ChallengeRequest, candidate string) (bool, error) {
	return v.codec.Verify(rec.SecretHash, candidate), nil
}

// delegatedVerifier lets the provider own the code.
type delegatedVerifier struct {
	sender sms.ChallengeSender
}

func newDelegatedVerifier(sender sms.ChallengeSender) *delegatedVerifier {
	return &delegatedVerifier{sender: sender}
}

func (*delegatedVerifier) Strategy() entity.Strategy { return entity.StrategyDelegated }

func (v *delegatedVerifier) IssueAndTrack(ctx context.Context, rec *entity.ChallengeRequest) error {
	receipt, err := v.sender.SendChallenge(ctx, sms.SendChallengeRequest{
		Recipient:       rec.Recipient,
		Originator:      rec.Originator,
		CodeLength:      rec.CodeLength,
		ValidForSeconds: rec.ValidForSeconds,
		MessageTemplate: rec.MessageTemplate,
		AllowPush:       rec.AllowPush,
		AppKey:          rec.AppKey,
	})
	if err != nil {
		return err
	}

	rec.Reference = receipt.Reference
	rec.NotBefore = receipt.NotBefore
	rec.NotAfter = receipt.NotAfter
	return nil
}

func (v *delegatedVerifier) CheckSubmission(ctx context.Context, rec *entity.ChallengeRequest, candidate string) (bool, error) {
	return v.sender.VerifyChallenge(ctx, rec.Reference, candidate)
}
