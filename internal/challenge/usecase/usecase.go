package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/pkg/clock"
	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
	"github.com/shandysiswandi/stepup/internal/pkg/goroutine"
	"github.com/shandysiswandi/stepup/internal/pkg/hash"
	"github.com/shandysiswandi/stepup/internal/pkg/idempotency"
	"github.com/shandysiswandi/stepup/internal/pkg/instrument"
	"github.com/shandysiswandi/stepup/internal/pkg/jwt"
	"github.com/shandysiswandi/stepup/internal/pkg/otp"
	"github.com/shandysiswandi/stepup/internal/pkg/sms"
	"github.com/shandysiswandi/stepup/internal/pkg/uid"
	"github.com/shandysiswandi/stepup/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// AMRSMSOTP is the authentication method asserted in resume tokens.
const AMRSMSOTP = "sms_otp"

const (
	msgNotFound      = "challenge not found or expired"
	msgExpired       = "Your verification code has expired."
	msgSendFailed    = "We could not send the verification code. Please try again."
	msgSendTimeout   = "The SMS service did not respond in time. Please try again."
	msgVerifyFailed  = "We could not check your verification code. Please request a new one."
	msgInconsistent  = "The verification flow is in an unexpected state."
	msgMissingMobile = "No mobile number is available for this account."
	msgInvalidMobile = "The mobile number for this account is not valid."
	msgInteraction   = "User interaction is required to complete verification."
)

type repoCache interface {
	GetChallenge(ctx context.Context, pendingID string) (*entity.ChallengeRequest, error)
	SaveChallenge(ctx context.Context, rec *entity.ChallengeRequest) error
}

type repoMessaging interface {
	PublishChallengeEvent(ctx context.Context, ev entity.ChallengeEvent) error
}

// PhoneNormalizer turns the raw mobile attribute into the provider's
// digits-only recipient format.
type PhoneNormalizer interface {
	Normalize(raw string) (string, error)
}

// Settings are the validated module settings the state machine runs with.
type Settings struct {
	Strategy        entity.Strategy `validate:"oneof=local delegated"`
	Originator      string          `validate:"required"`
	MobileAttribute string          `validate:"required"`
	DefaultRegion   string          `validate:"required,len=2,alpha"`
	ValidForSeconds int             `validate:"gt=0"`
	CodeLength      int             `validate:"min=4,max=10"`
	MessageTemplate string          `validate:"required,codetemplate"`
	AllowPush       bool
	AppKey          string        `validate:"omitempty,uuid"`
	ProviderTimeout time.Duration `validate:"gt=0"`
	DispatchGuard   time.Duration `validate:"gt=0"`
	// StateTTL bounds how long a record lives in the store. It must cover
	// the code window so an expired code still reaches the resend prompt.
	StateTTL time.Duration `validate:"gt=0"`
}

type Usecase struct {
	repoCache     repoCache
	repoMessaging repoMessaging
	verifier      Verifier
	phone         PhoneNormalizer
	idemp         idempotency.Idempotency
	validator     validator.Validator
	settings      Settings
	uuid          uid.StringID
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
	transitions   metric.Int64Counter
}

type Dependency struct {
	RepoCache       repoCache
	RepoMessaging   repoMessaging
	ChallengeSender sms.ChallengeSender
	MessageSender   sms.MessageSender
	Phone           PhoneNormalizer
	OTP             otp.Generator
	SecretCodec     hash.Hash
	Idempotency     idempotency.Idempotency
	Validator       validator.Validator
	Settings        Settings
	UUID            uid.StringID
	Clock           clock.Clocker
	JWT             jwt.JWT
	Instrument      instrument.Instrumentation
	Goroutine       *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	var v Verifier
	switch dep.Settings.Strategy {
	case entity.StrategyLocal:
		v = newLocalVerifier(dep.OTP, dep.SecretCodec, dep.MessageSender, dep.Clock)
	default:
		v = newDelegatedVerifier(dep.ChallengeSender)
	}

	transitions, err := dep.Instrument.Meter("challenge.usecase").Int64Counter(
		"challenge.transitions",
		metric.WithDescription("Number of challenge state transitions"),
	)
	if err != nil {
		slog.Error("failed to create challenge transition counter", "error", err)
	}

	return &Usecase{
		repoCache:     dep.RepoCache,
		repoMessaging: dep.RepoMessaging,
		verifier:      v,
		phone:         dep.Phone,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		settings:      dep.Settings,
		uuid:          dep.UUID,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
		transitions:   transitions,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("challenge.usecase").Start(ctx, name)
}

func (s *Usecase) load(ctx context.Context, pendingID string) (*entity.ChallengeRequest, error) {
	rec, err := s.repoCache.GetChallenge(ctx, pendingID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "challenge not found", "pending_id", pendingID)
		return nil, goerror.NewBusiness(msgNotFound, goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get challenge", "pending_id", pendingID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return rec, nil
}

// transition moves rec to state, persists it and announces the change.
func (s *Usecase) transition(ctx context.Context, rec *entity.ChallengeRequest, state entity.State, reason string) error {
	rec.State = state

	if err := s.repoCache.SaveChallenge(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "failed to repo save challenge", "pending_id", rec.ID, "state", state.String(), "error", err)
		return goerror.NewServer(err)
	}

	if s.transitions != nil {
		s.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("state", state.String()),
			attribute.String("strategy", rec.Strategy.String()),
		))
	}

	s.publish(ctx, entity.ChallengeEvent{
		PendingID:  rec.ID,
		State:      state,
		Strategy:   rec.Strategy,
		Reason:     reason,
		OccurredAt: s.clock.Now(),
	})

	return nil
}

func (s *Usecase) publish(ctx context.Context, ev entity.ChallengeEvent) {
	scheduled := s.goroutine.Go(ctx, func(ctx context.Context) error {
		if err := s.repoMessaging.PublishChallengeEvent(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "failed to publish challenge event", "pending_id", ev.PendingID, "state", ev.State.String(), "error", err)
		}
		return nil
	})
	if !scheduled {
		slog.WarnContext(ctx, "challenge event dropped", "pending_id", ev.PendingID, "state", ev.State.String())
	}
}

func (s *Usecase) inconsistent(ctx context.Context, rec *entity.ChallengeRequest, op string) error {
	slog.ErrorContext(ctx, "challenge in unexpected state", "pending_id", rec.ID, "state", rec.State.String(), "operation", op)
	return goerror.NewServerMsg(entity.ErrInconsistentState, msgInconsistent)
}

// resume builds the directive that hands control back to the pipeline.
func (s *Usecase) resume(ctx context.Context, rec *entity.ChallengeRequest) (*Directive, error) {
	token, err := s.jwt.Generate(rec.ID, AMRSMSOTP)
	if err != nil {
		slog.ErrorContext(ctx, "failed to sign resume token", "pending_id", rec.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &Directive{
		Kind:          KindResume,
		PendingID:     rec.ID,
		ResumeToken:   token,
		PipelineState: rec.PipelineState,
	}, nil
}

// next returns where the user belongs given the record's current state.
func (s *Usecase) next(ctx context.Context, rec *entity.ChallengeRequest) (*Directive, error) {
	switch rec.State {
	case entity.StateNew:
		return redirect(StepSendCode, rec.ID), nil
	case entity.StateSent, entity.StateInvalid:
		return redirect(StepEnterCode, rec.ID), nil
	case entity.StateExpired, entity.StateSendFailed, entity.StateResendPending:
		return redirect(StepPromptResend, rec.ID), nil
	case entity.StateVerified:
		return s.resume(ctx, rec)
	default:
		return nil, s.inconsistent(ctx, rec, "next")
	}
}
