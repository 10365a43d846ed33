package challenge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/challenge/usecase"
	"github.com/shandysiswandi/stepup/internal/pkg/clock"
	"github.com/shandysiswandi/stepup/internal/pkg/config"
	"github.com/shandysiswandi/stepup/internal/pkg/goroutine"
	"github.com/shandysiswandi/stepup/internal/pkg/hash"
	"github.com/shandysiswandi/stepup/internal/pkg/idempotency"
	"github.com/shandysiswandi/stepup/internal/pkg/instrument"
	"github.com/shandysiswandi/stepup/internal/pkg/jwt"
	"github.com/shandysiswandi/stepup/internal/pkg/messaging"
	"github.com/shandysiswandi/stepup/internal/pkg/otp"
	"github.com/shandysiswandi/stepup/internal/pkg/router"
	"github.com/shandysiswandi/stepup/internal/pkg/seal"
	"github.com/shandysiswandi/stepup/internal/pkg/sms"
	"github.com/shandysiswandi/stepup/internal/pkg/uid"
	"github.com/shandysiswandi/stepup/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	productToken = "2f5d0c7e-1a3b-4c6d-8e9f-0a1b2c3d4e5f"
	reference    = "0b9a4c2e-3d1f-4c55-9b0e-6f1d2a3b4c5d"
)

var createdAt = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []messaging.OutgoingMessage
	dest []string
}

func (p *recordingPublisher) Publish(_ context.Context, dest string, msg messaging.OutgoingMessage) (messaging.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dest = append(p.dest, dest)
	p.msgs = append(p.msgs, msg)
	return messaging.PublishResult{Subject: dest}, nil
}

func newValidator(t *testing.T) validator.Validator {
	t.Helper()

	v, err := validator.NewV10Validator()
	require.NoError(t, err)
	return v
}

func newConfig(t *testing.T, yaml string) config.Config {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)
	return cfg
}

func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, productToken, r.Header.Get(sms.HeaderProductToken))

		switch r.URL.Path {
		case "/v1.0/otp/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":        reference,
				"createdAt": createdAt.Format(time.RFC3339),
				"expireAt":  createdAt.Add(600 * time.Second).Format(time.RFC3339),
			})
		case "/v1.0/otp/verify":
			var body struct {
				ID   string `json:"id"`
				Code string `json:"code"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]bool{"valid": body.ID == reference && body.Code == "123456"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type wired struct {
	dep       Dependency
	publisher *recordingPublisher
	signer    *jwt.Symmetric
}

func newDependency(t *testing.T, cfg config.Config) wired {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := clock.NewFixed(createdAt.Add(time.Minute))
	signer, err := jwt.NewHS512(jwt.Config{
		Secret: bytes.Repeat([]byte("s"), 64),
		Issuer: "stepup",
		TTL:    5 * time.Minute,
		Clock:  clk,
		UUID:   uid.NewRandomUUID(),
	})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	ins := instrument.NewNoop()

	return wired{
		publisher: pub,
		signer:    signer,
		dep: Dependency{
			CacheConn:   client,
			Goroutine:   goroutine.NewManager(10),
			Router:      router.NewRouter(router.Config{Config: cfg, UUID: uid.NewRandomUUID(), JWT: signer, Instrument: ins}),
			Idempotency: idempotency.New(client),
			Messaging:   pub,
			Sealer:      seal.NewAESGCM(seal.StaticKeyProvider{KeyBytes: bytes.Repeat([]byte{1}, 32)}),
			Config:      cfg,
			Instrument:  ins,
			UUID:        uid.NewRandomUUID(),
			HMAC:        hash.NewHMACSHA256("key-secret"),
			Bcrypt:      hash.NewBcrypt(4, "pepper"),
			Argon2ID:    hash.NewArgon2id("pepper"),
			OTP:         otp.NewNumeric(),
			Clock:       clk,
			Validator:   newValidator(t),
			JWT:         signer,
		},
	}
}

func call(t *testing.T, h http.Handler, token, method, path, body string) map[string]any {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Data
}

func TestNewServesDelegatedFlow(t *testing.T) {
	srv := fakeProvider(t)
	cfg := newConfig(t, `
modules:
  challenge:
    enabled: true
    product_token: "`+productToken+`"
    originator: EXAMPLE
    provider:
      base_url: "`+srv.URL+`"
`)

	w := newDependency(t, cfg)
	require.NoError(t, New(w.dep))

	token, err := w.signer.Generate("pipeline")
	require.NoError(t, err)
	h := w.dep.Router

	data := call(t, h, token, http.MethodPost, "/api/v1/challenges",
		`{"attributes":{"mobile":["+31612345678"]},"pipeline_state":"opaque"}`)
	assert.Equal(t, "send-code", data["step"])
	id, ok := data["pending_id"].(string)
	require.True(t, ok)

	data = call(t, h, token, http.MethodPost, "/api/v1/challenges/"+id+"/send", "")
	assert.Equal(t, "enter-code", data["step"])

	data = call(t, h, token, http.MethodPost, "/api/v1/challenges/"+id+"/code", `{"code":"654321"}`)
	assert.Equal(t, "enter-code", data["step"])

	data = call(t, h, token, http.MethodPost, "/api/v1/challenges/"+id+"/code", `{"code":"123456"}`)
	assert.Equal(t, "resume", data["kind"])
	assert.Equal(t, "opaque", data["pipeline_state"])

	claims, err := w.signer.Verify(data["resume_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject)
	assert.Equal(t, []string{usecase.AMRSMSOTP}, claims.AMR)

	require.NoError(t, w.dep.Goroutine.Wait())
	assert.Len(t, w.publisher.msgs, 4)
	for _, dest := range w.publisher.dest {
		assert.Equal(t, defaultEventsSubject, dest)
	}
	for _, msg := range w.publisher.msgs {
		assert.NotContains(t, string(msg.Body), "612345678")
	}
}

func TestNewRejectsMissingDependency(t *testing.T) {
	cfg := newConfig(t, `modules: {challenge: {product_token: "`+productToken+`"}}`)
	w := newDependency(t, cfg)
	w.dep.Sealer = nil

	assert.Error(t, New(w.dep))
}

func TestNewRejectsProductToken(t *testing.T) {
	cfg := newConfig(t, `modules: {challenge: {product_token: "not-a-uuid"}}`)
	w := newDependency(t, cfg)

	err := New(w.dep)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
	assert.ErrorIs(t, err, sms.ErrConfiguration)
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := loadSettings(newConfig(t, `modules: {challenge: {enabled: true}}`), newValidator(t))
	require.NoError(t, err)

	assert.Equal(t, usecase.Settings{
		Strategy:        entity.StrategyDelegated,
		Originator:      "CMdotcom",
		MobileAttribute: "mobile",
		DefaultRegion:   "NL",
		ValidForSeconds: 600,
		CodeLength:      6,
		MessageTemplate: DefaultMessage,
		ProviderTimeout: 3 * time.Second,
		DispatchGuard:   5 * time.Second,
		StateTTL:        15 * time.Minute,
	}, s)
}

func TestLoadSettingsOverrides(t *testing.T) {
	s, err := loadSettings(newConfig(t, `
modules:
  challenge:
    strategy: LOCAL
    originator: "ACME SMS"
    mobile_attribute: telephoneNumber
    default_region: be
    valid_for_seconds: 300
    code_length: 8
    message: "Code: {code}"
    allow_push: true
    app_key: "`+productToken+`"
    provider:
      timeout_seconds: 2
    dispatch_guard_seconds: 10
`), newValidator(t))
	require.NoError(t, err)

	assert.Equal(t, entity.StrategyLocal, s.Strategy)
	assert.Equal(t, "ACME SMS", s.Originator)
	assert.Equal(t, "telephoneNumber", s.MobileAttribute)
	assert.Equal(t, "BE", s.DefaultRegion)
	assert.Equal(t, 300, s.ValidForSeconds)
	assert.Equal(t, 8, s.CodeLength)
	assert.Equal(t, "Code: {code}", s.MessageTemplate)
	assert.True(t, s.AllowPush)
	assert.Equal(t, 2*time.Second, s.ProviderTimeout)
	assert.Equal(t, 10*time.Second, s.DispatchGuard)
}

func TestLoadSettingsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		target error
	}{
		{name: "strategy", yaml: `{strategy: remote}`},
		{name: "short originator", yaml: `{originator: "12"}`, target: sms.ErrSenderIDInvalidLength},
		{name: "long numeric originator", yaml: `{originator: "12345678901234567"}`, target: sms.ErrSenderIDTooLong},
		{name: "code length", yaml: `{code_length: 3}`},
		{name: "validity", yaml: `{valid_for_seconds: 0}`},
		{name: "template without placeholder", yaml: `{message: "hello"}`},
		{name: "region", yaml: `{default_region: NLD}`},
		{name: "push without app key", yaml: `{allow_push: true}`, target: sms.ErrInvalidAppKey},
		{name: "app key not uuid", yaml: `{app_key: "abc"}`},
		{name: "store ttl shorter than validity", yaml: `{valid_for_seconds: 1200}`},
		{name: "explicit store ttl too short", yaml: `{valid_for_seconds: 300, state_ttl_seconds: 299}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSettings(newConfig(t, "modules: {challenge: "+tt.yaml+"}"), newValidator(t))
			assert.ErrorIs(t, err, entity.ErrConfiguration)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}
