package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/challenge/usecase"
	"github.com/shandysiswandi/stepup/internal/pkg/clock"
	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
	"github.com/shandysiswandi/stepup/internal/pkg/goroutine"
	"github.com/shandysiswandi/stepup/internal/pkg/hash"
	"github.com/shandysiswandi/stepup/internal/pkg/idempotency"
	"github.com/shandysiswandi/stepup/internal/pkg/instrument"
	"github.com/shandysiswandi/stepup/internal/pkg/jwt"
	"github.com/shandysiswandi/stepup/internal/pkg/phone"
	"github.com/shandysiswandi/stepup/internal/pkg/sms"
	"github.com/shandysiswandi/stepup/internal/pkg/uid"
	"github.com/shandysiswandi/stepup/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type memCache struct {
	mu   sync.Mutex
	recs map[string]entity.ChallengeRequest
}

func (m *memCache) GetChallenge(_ context.Context, pendingID string) (*entity.ChallengeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recs[pendingID]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &rec, nil
}

func (m *memCache) SaveChallenge(_ context.Context, rec *entity.ChallengeRequest) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = *rec
	return nil
}

func (m *memCache) get(t *testing.T, pendingID string) entity.ChallengeRequest {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[pendingID]
	require.True(t, ok, "record %s not stored", pendingID)
	return rec
}

type eventSink struct {
	mu     sync.Mutex
	events []entity.ChallengeEvent
	err    error
}

func (e *eventSink) PublishChallengeEvent(_ context.Context, ev entity.ChallengeEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

type fakeChallengeSender struct {
	code        string
	receipt     sms.Receipt
	sendErr     error
	verifyErr   error
	sendCalls   int
	verifyCalls int
	lastSend    sms.SendChallengeRequest
}

func (f *fakeChallengeSender) SendChallenge(_ context.Context, req sms.SendChallengeRequest) (*sms.Receipt, error) {
	f.sendCalls++
	f.lastSend = req
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	r := f.receipt
	return &r, nil
}

func (f *fakeChallengeSender) VerifyChallenge(_ context.Context, reference, code string) (bool, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	return reference == f.receipt.Reference && code == f.code, nil
}

type fakeMessageSender struct {
	sent []sms.TextMessage
	err  error
}

func (f *fakeMessageSender) SendMessage(_ context.Context, msg sms.TextMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fixedOTP struct{ code string }

func (f fixedOTP) Generate(int) (string, error) { return f.code, nil }

type harness struct {
	uc         *usecase.Usecase
	cache      *memCache
	sink       *eventSink
	challenges *fakeChallengeSender
	messages   *fakeMessageSender
	clock      *clock.Fixed
	jwt        *jwt.Symmetric
	gm         *goroutine.Manager
	mr         *miniredis.Miniredis
}

func newHarness(t *testing.T, strategy entity.Strategy) *harness {
	t.Helper()

	return newHarnessInRegion(t, strategy, "NL")
}

func newHarnessInRegion(t *testing.T, strategy entity.Strategy, region string) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	clk := clock.NewFixed(t0)
	signer, err := jwt.NewHS512(jwt.Config{
		Secret: bytes.Repeat([]byte("s"), 64),
		Issuer: "stepup",
		TTL:    5 * time.Minute,
		Clock:  clk,
		UUID:   uid.NewRandomUUID(),
	})
	require.NoError(t, err)

	h := &harness{
		cache: &memCache{recs: map[string]entity.ChallengeRequest{}},
		sink:  &eventSink{},
		challenges: &fakeChallengeSender{
			code: "123456",
			receipt: sms.Receipt{
				Reference: "0b9a4c2e-3d1f-4c55-9b0e-6f1d2a3b4c5d",
				NotBefore: t0,
				NotAfter:  t0.Add(600 * time.Second),
			},
		},
		messages: &fakeMessageSender{},
		clock:    clk,
		jwt:      signer,
		gm:       goroutine.NewManager(10),
		mr:       mr,
	}

	h.uc = usecase.New(usecase.Dependency{
		RepoCache:       h.cache,
		RepoMessaging:   h.sink,
		ChallengeSender: h.challenges,
		MessageSender:   h.messages,
		Phone:           phone.NewNormalizer(region),
		OTP:             fixedOTP{code: "004321"},
		SecretCodec:     hash.NewHMACSHA256("pepper"),
		Idempotency:     idempotency.New(client),
		Validator:       v,
		Settings: usecase.Settings{
			Strategy:        strategy,
			Originator:      "EXAMPLE",
			MobileAttribute: "mobile",
			DefaultRegion:   region,
			ValidForSeconds: 600,
			CodeLength:      6,
			MessageTemplate: "Your code is {code}",
			ProviderTimeout: 3 * time.Second,
			DispatchGuard:   5 * time.Second,
			StateTTL:        15 * time.Minute,
		},
		UUID:       uid.NewRandomUUID(),
		Clock:      clk,
		JWT:        signer,
		Instrument: instrument.NewNoop(),
		Goroutine:  h.gm,
	})

	return h
}

func (h *harness) begin(t *testing.T) string {
	t.Helper()

	out, err := h.uc.Begin(context.Background(), usecase.BeginInput{
		Attributes:    map[string][]string{"mobile": {"06 1234 5678"}},
		PipelineState: "state-token",
	})
	require.NoError(t, err)
	require.Equal(t, usecase.KindRedirect, out.Kind)
	require.Equal(t, usecase.StepSendCode, out.Step)
	return out.PendingID
}

func (h *harness) dispatch(t *testing.T, id string) *usecase.Directive {
	t.Helper()

	out, err := h.uc.Dispatch(context.Background(), usecase.DispatchInput{PendingID: id})
	require.NoError(t, err)
	return out
}

func (h *harness) submit(t *testing.T, id, code string) *usecase.Directive {
	t.Helper()

	out, err := h.uc.Submit(context.Background(), usecase.SubmitInput{PendingID: id, Code: code})
	require.NoError(t, err)
	return out
}

// states waits for background publishing and returns the published states.
func (h *harness) states(t *testing.T) []entity.State {
	t.Helper()

	require.NoError(t, h.gm.Wait())

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	out := make([]entity.State, 0, len(h.sink.events))
	for _, ev := range h.sink.events {
		out = append(out, ev.State)
	}
	return out
}

func assertCode(t *testing.T, err error, want int) {
	t.Helper()

	gerr, ok := goerror.As(err)
	require.True(t, ok, "expected goerror, got %v", err)
	assert.Equal(t, want, gerr.StatusCode())
}

func TestDelegatedHappyPath(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)
	ctx := context.Background()

	id := h.begin(t)
	rec := h.cache.get(t, id)
	assert.Equal(t, entity.StateNew, rec.State)
	assert.Equal(t, "0031612345678", rec.Recipient)
	assert.Equal(t, "EXAMPLE", rec.Originator)

	out := h.dispatch(t, id)
	assert.Equal(t, usecase.StepEnterCode, out.Step)
	assert.Equal(t, 1, h.challenges.sendCalls)
	assert.Equal(t, "0031612345678", h.challenges.lastSend.Recipient)
	assert.Equal(t, 600, h.challenges.lastSend.ValidForSeconds)

	rec = h.cache.get(t, id)
	assert.Equal(t, entity.StateSent, rec.State)
	assert.Equal(t, h.challenges.receipt.Reference, rec.Reference)
	assert.Equal(t, t0, rec.NotBefore)
	assert.Equal(t, t0.Add(600*time.Second), rec.NotAfter)
	assert.Empty(t, rec.SecretHash)

	page, err := h.uc.EnterCode(ctx, usecase.EnterCodeInput{PendingID: id})
	require.NoError(t, err)
	assert.Equal(t, usecase.KindRender, page.Kind)
	assert.Equal(t, "enter-code", page.View)
	view, ok := page.Data.(usecase.EnterCodeView)
	require.True(t, ok)
	assert.Equal(t, "**********678", view.MaskedRecipient)
	assert.Equal(t, 6, view.CodeLength)
	assert.False(t, view.Invalid)

	h.clock.Advance(2 * time.Minute)
	out = h.submit(t, id, "123456")
	require.Equal(t, usecase.KindResume, out.Kind)
	assert.Equal(t, "state-token", out.PipelineState)

	claims, err := h.jwt.Verify(out.ResumeToken)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject)
	assert.Equal(t, []string{usecase.AMRSMSOTP}, claims.AMR)

	assert.Equal(t, entity.StateVerified, h.cache.get(t, id).State)
	assert.Equal(t, []entity.State{entity.StateNew, entity.StateSent, entity.StateVerified}, h.states(t))
}

func TestBeginNormalizesInConfiguredRegion(t *testing.T) {
	h := newHarnessInRegion(t, entity.StrategyDelegated, "BE")

	out, err := h.uc.Begin(context.Background(), usecase.BeginInput{
		Attributes: map[string][]string{"mobile": {"0470 12 34 56"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "0032470123456", h.cache.get(t, out.PendingID).Recipient)
}

func TestLocalHappyPath(t *testing.T) {
	h := newHarness(t, entity.StrategyLocal)

	id := h.begin(t)
	out := h.dispatch(t, id)
	assert.Equal(t, usecase.StepEnterCode, out.Step)
	assert.Zero(t, h.challenges.sendCalls)

	require.Len(t, h.messages.sent, 1)
	msg := h.messages.sent[0]
	assert.Equal(t, "Your code is 004321", msg.Body)
	assert.Equal(t, "0031612345678", msg.Recipient)
	assert.Equal(t, id, msg.Reference)

	rec := h.cache.get(t, id)
	assert.Equal(t, entity.StrategyLocal, rec.Strategy)
	assert.Equal(t, t0, rec.CreatedAt)
	assert.NotEmpty(t, rec.SecretHash)
	assert.NotContains(t, rec.SecretHash, "004321")
	assert.Empty(t, rec.Reference)

	out = h.submit(t, id, "004321")
	assert.Equal(t, usecase.KindResume, out.Kind)
	assert.Equal(t, entity.StateVerified, h.cache.get(t, id).State)
}

func TestDispatchProviderFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{
			name:   "rejected",
			err:    &sms.ProviderError{Op: "generate", StatusCode: http.StatusBadRequest, Message: "invalid sender", Status: 400},
			reason: "We could not send the verification code. Please try again.",
		},
		{
			name:   "timeout",
			err:    &sms.ProviderError{Op: "generate", Timeout: true, Err: context.DeadlineExceeded},
			reason: "The SMS service did not respond in time. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, entity.StrategyDelegated)
			h.challenges.sendErr = tt.err

			id := h.begin(t)
			out := h.dispatch(t, id)
			assert.Equal(t, usecase.KindRedirect, out.Kind)
			assert.Equal(t, usecase.StepPromptResend, out.Step)

			rec := h.cache.get(t, id)
			assert.Equal(t, entity.StateSendFailed, rec.State)
			assert.Equal(t, tt.reason, rec.LastFailureReason)
			assert.False(t, rec.Issued())

			page, err := h.uc.PromptResend(context.Background(), usecase.PromptResendInput{PendingID: id})
			require.NoError(t, err)
			assert.Equal(t, usecase.KindRender, page.Kind)
			assert.Equal(t, usecase.PromptResendView{Message: tt.reason}, page.Data)
		})
	}
}

func TestDispatchUnexpectedError(t *testing.T) {
	h := newHarness(t, entity.StrategyLocal)
	h.messages.err = sms.ErrPrecondition

	id := h.begin(t)
	_, err := h.uc.Dispatch(context.Background(), usecase.DispatchInput{PendingID: id})
	require.Error(t, err)
	assertCode(t, err, http.StatusInternalServerError)
	assert.Equal(t, entity.StateNew, h.cache.get(t, id).State)
}

func TestDispatchSuppressesDuplicates(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)

	id := h.begin(t)
	h.dispatch(t, id)
	out := h.dispatch(t, id)
	assert.Equal(t, usecase.StepEnterCode, out.Step)
	assert.Equal(t, 1, h.challenges.sendCalls)

	t.Run("in progress", func(t *testing.T) {
		other := h.begin(t)
		h.mr.Set("stepup:idempotency:challenge:dispatch:"+other+":new", idempotency.StateInProgress.String())

		out := h.dispatch(t, other)
		assert.Equal(t, usecase.StepEnterCode, out.Step)
		assert.Equal(t, 1, h.challenges.sendCalls)
		assert.Equal(t, entity.StateNew, h.cache.get(t, other).State)
	})
}

func TestBeginRejects(t *testing.T) {
	tests := []struct {
		name   string
		in     usecase.BeginInput
		target error
		status int
	}{
		{
			name:   "passive",
			in:     usecase.BeginInput{IsPassive: true, Attributes: map[string][]string{"mobile": {"0612345678"}}},
			target: entity.ErrInteractionRequired,
			status: http.StatusForbidden,
		},
		{
			name:   "missing attribute",
			in:     usecase.BeginInput{Attributes: map[string][]string{"email": {"a@b.c"}}},
			target: entity.ErrMissingAttribute,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "blank attribute",
			in:     usecase.BeginInput{Attributes: map[string][]string{"mobile": {" "}}},
			target: entity.ErrMissingAttribute,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "invalid number",
			in:     usecase.BeginInput{Attributes: map[string][]string{"mobile": {"abc123"}}},
			target: entity.ErrInvalidPhoneNumber,
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, entity.StrategyDelegated)

			out, err := h.uc.Begin(context.Background(), tt.in)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.target)
			assertCode(t, err, tt.status)
			assert.Empty(t, h.cache.recs)
			assert.Empty(t, h.states(t))
		})
	}
}

func TestSubmitExpiredEvenIfCorrect(t *testing.T) {
	for _, strategy := range []entity.Strategy{entity.StrategyDelegated, entity.StrategyLocal} {
		t.Run(strategy.String(), func(t *testing.T) {
			h := newHarness(t, strategy)

			id := h.begin(t)
			h.dispatch(t, id)

			code := "123456"
			if strategy == entity.StrategyLocal {
				code = "004321"
			}

			h.clock.Advance(601 * time.Second)
			out := h.submit(t, id, code)
			assert.Equal(t, usecase.StepPromptResend, out.Step)
			assert.Zero(t, h.challenges.verifyCalls)

			rec := h.cache.get(t, id)
			assert.Equal(t, entity.StateExpired, rec.State)
			assert.True(t, rec.Expired)
			assert.Zero(t, rec.Attempts)

			page, err := h.uc.PromptResend(context.Background(), usecase.PromptResendInput{PendingID: id})
			require.NoError(t, err)
			assert.Equal(t, usecase.PromptResendView{Message: "Your verification code has expired."}, page.Data)
		})
	}
}

func TestSubmitWindowBoundsInclusive(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)

	id := h.begin(t)
	h.dispatch(t, id)

	h.clock.Advance(600 * time.Second)
	out := h.submit(t, id, "123456")
	assert.Equal(t, usecase.KindResume, out.Kind)
}

func TestSubmitBeforeNotBefore(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)
	h.challenges.receipt.NotBefore = t0.Add(time.Minute)

	id := h.begin(t)
	h.dispatch(t, id)

	out := h.submit(t, id, "123456")
	assert.Equal(t, usecase.StepPromptResend, out.Step)
	assert.Equal(t, entity.StateExpired, h.cache.get(t, id).State)
}

func TestSubmitMismatchThenMatch(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)
	ctx := context.Background()

	id := h.begin(t)
	h.dispatch(t, id)
	before := h.cache.get(t, id)

	out := h.submit(t, id, "000000")
	assert.Equal(t, usecase.KindRedirect, out.Kind)
	assert.Equal(t, usecase.StepEnterCode, out.Step)
	assert.Equal(t, 1, h.challenges.verifyCalls)

	// malformed codes never reach the provider
	out = h.submit(t, id, "12ab")
	assert.Equal(t, usecase.StepEnterCode, out.Step)
	assert.Equal(t, 1, h.challenges.verifyCalls)

	rec := h.cache.get(t, id)
	assert.Equal(t, entity.StateInvalid, rec.State)
	assert.True(t, rec.Invalid)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, before.Recipient, rec.Recipient)
	assert.Equal(t, before.Originator, rec.Originator)
	assert.Equal(t, before.Reference, rec.Reference)

	page, err := h.uc.EnterCode(ctx, usecase.EnterCodeInput{PendingID: id})
	require.NoError(t, err)
	view, ok := page.Data.(usecase.EnterCodeView)
	require.True(t, ok)
	assert.True(t, view.Invalid)

	out = h.submit(t, id, " 123456 ")
	assert.Equal(t, usecase.KindResume, out.Kind)

	rec = h.cache.get(t, id)
	assert.Equal(t, entity.StateVerified, rec.State)
	assert.False(t, rec.Invalid)
}

func TestSubmitProviderFailure(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)
	h.challenges.verifyErr = &sms.ProviderError{Op: "verify", StatusCode: http.StatusBadGateway}

	id := h.begin(t)
	h.dispatch(t, id)

	out := h.submit(t, id, "123456")
	assert.Equal(t, usecase.StepPromptResend, out.Step)

	rec := h.cache.get(t, id)
	assert.Equal(t, entity.StateSendFailed, rec.State)
	assert.Equal(t, "We could not check your verification code. Please request a new one.", rec.LastFailureReason)
}

func TestSubmitVerifiedIsRepeatable(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)

	id := h.begin(t)
	h.dispatch(t, id)
	first := h.submit(t, id, "123456")
	require.Equal(t, usecase.KindResume, first.Kind)

	again := h.submit(t, id, "999999")
	assert.Equal(t, usecase.KindResume, again.Kind)
	assert.Equal(t, first.PipelineState, again.PipelineState)
	assert.Equal(t, 1, h.challenges.verifyCalls)

	_, err := h.uc.Dispatch(context.Background(), usecase.DispatchInput{PendingID: id})
	assert.ErrorIs(t, err, entity.ErrInconsistentState)
}

func TestSubmitBeforeDispatch(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)

	id := h.begin(t)
	_, err := h.uc.Submit(context.Background(), usecase.SubmitInput{PendingID: id, Code: "123456"})
	assert.ErrorIs(t, err, entity.ErrInconsistentState)
	assertCode(t, err, http.StatusInternalServerError)
}

func TestRequestResendFlow(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)
	ctx := context.Background()

	id := h.begin(t)

	out, err := h.uc.RequestResend(ctx, usecase.RequestResendInput{PendingID: id})
	require.NoError(t, err)
	assert.Equal(t, usecase.StepSendCode, out.Step)

	h.dispatch(t, id)
	h.submit(t, id, "000000")

	out, err = h.uc.RequestResend(ctx, usecase.RequestResendInput{PendingID: id})
	require.NoError(t, err)
	assert.Equal(t, usecase.StepPromptResend, out.Step)

	rec := h.cache.get(t, id)
	assert.Equal(t, entity.StateResendPending, rec.State)
	assert.True(t, rec.ResendRequested)

	page, err := h.uc.PromptResend(ctx, usecase.PromptResendInput{PendingID: id})
	require.NoError(t, err)
	assert.Equal(t, usecase.PromptResendView{Message: ""}, page.Data)

	h.challenges.receipt.Reference = "5e4f7d0a-8b2c-4f3e-a1d9-2c6b7e8f9a0b"
	out = h.dispatch(t, id)
	assert.Equal(t, usecase.StepEnterCode, out.Step)
	assert.Equal(t, 2, h.challenges.sendCalls)

	rec = h.cache.get(t, id)
	assert.Equal(t, entity.StateSent, rec.State)
	assert.Equal(t, "5e4f7d0a-8b2c-4f3e-a1d9-2c6b7e8f9a0b", rec.Reference)
	assert.False(t, rec.ResendRequested)
	assert.False(t, rec.Invalid)
	assert.Zero(t, rec.Attempts)
}

func TestPromptResendWithoutReason(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)

	id := h.begin(t)
	h.dispatch(t, id)

	_, err := h.uc.PromptResend(context.Background(), usecase.PromptResendInput{PendingID: id})
	assert.ErrorIs(t, err, entity.ErrInconsistentState)
}

func TestEnterCodeRedirects(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)

	id := h.begin(t)
	out, err := h.uc.EnterCode(context.Background(), usecase.EnterCodeInput{PendingID: id})
	require.NoError(t, err)
	assert.Equal(t, usecase.KindRedirect, out.Kind)
	assert.Equal(t, usecase.StepSendCode, out.Step)
}

func TestUnknownPendingID(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)

	_, err := h.uc.Submit(context.Background(), usecase.SubmitInput{PendingID: uid.NewRandomUUID().Generate(), Code: "123456"})
	assertCode(t, err, http.StatusNotFound)

	_, err = h.uc.EnterCode(context.Background(), usecase.EnterCodeInput{PendingID: "not-a-uuid"})
	assertCode(t, err, http.StatusUnprocessableEntity)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	h := newHarness(t, entity.StrategyDelegated)
	h.sink.err = errors.New("nats down")

	id := h.begin(t)
	assert.Equal(t, entity.StateNew, h.cache.get(t, id).State)
	assert.Equal(t, []entity.State{entity.StateNew}, h.states(t))
}
