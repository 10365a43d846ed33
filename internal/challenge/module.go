package challenge

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/challenge/inbound"
	"github.com/shandysiswandi/stepup/internal/challenge/outbound/cache"
	"github.com/shandysiswandi/stepup/internal/challenge/outbound/mq"
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
	"github.com/shandysiswandi/stepup/internal/pkg/phone"
	"github.com/shandysiswandi/stepup/internal/pkg/router"
	"github.com/shandysiswandi/stepup/internal/pkg/seal"
	"github.com/shandysiswandi/stepup/internal/pkg/sms"
	"github.com/shandysiswandi/stepup/internal/pkg/uid"
	"github.com/shandysiswandi/stepup/internal/pkg/validator"
)

const prefix = "modules.challenge."

// DefaultMessage is sent when no message template is configured.
const DefaultMessage = "{code}\nEnter this verification code when asked during the authentication process."

const (
	defaultOriginator      = "CMdotcom"
	defaultMobileAttribute = "mobile"
	defaultValidFor        = 600
	defaultStateTTL        = 900 * time.Second
	defaultDispatchGuard   = 5 * time.Second
	defaultEventsSubject   = "stepup.challenge.events"
)

type Dependency struct {
	CacheConn   *redis.Client              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Messaging   messaging.Publisher        `validate:"required"`
	Sealer      seal.Sealer                `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	HMAC        *hash.HMACSHA256           `validate:"required"`
	Bcrypt      hash.Hash                  `validate:"required"`
	Argon2ID    hash.Hash                  `validate:"required"`
	OTP         otp.Generator              `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	JWT         jwt.JWT                    `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	settings, err := loadSettings(dep.Config, dep.Validator)
	if err != nil {
		return err
	}

	client, err := sms.NewCM(sms.CMConfig{
		ProductToken: dep.Config.GetString(prefix + "product_token"),
		BaseURL:      dep.Config.GetString(prefix + "provider.base_url"),
		GatewayURL:   dep.Config.GetString(prefix + "provider.gateway_url"),
		Timeout:      settings.ProviderTimeout,
		Proxy:        dep.Config.GetString(prefix + "provider.proxy"),
	})
	if err != nil {
		return errors.Join(entity.ErrConfiguration, err)
	}

	codec := dep.Argon2ID
	if strings.EqualFold(dep.Config.GetString(prefix+"local.hasher"), hash.AlgorithmBcrypt) {
		codec = dep.Bcrypt
	}

	subject := stringOr(dep.Config, prefix+"events_subject", defaultEventsSubject)

	repoCache := cache.NewCache(dep.CacheConn, dep.Sealer, dep.HMAC, settings.StateTTL, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, subject, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoCache:       repoCache,
		RepoMessaging:   repoMsg,
		ChallengeSender: client,
		MessageSender:   client,
		Phone:           phone.NewNormalizer(settings.DefaultRegion),
		OTP:             dep.OTP,
		SecretCodec:     codec,
		Idempotency:     dep.Idempotency,
		Validator:       dep.Validator,
		Settings:        settings,
		UUID:            dep.UUID,
		Clock:           dep.Clock,
		JWT:             dep.JWT,
		Instrument:      dep.Instrument,
		Goroutine:       dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	slog.Info("challenge module ready",
		"strategy", settings.Strategy.String(),
		"originator", settings.Originator,
		"code_length", settings.CodeLength,
		"valid_for_seconds", settings.ValidForSeconds,
	)

	return nil
}

func loadSettings(cfg config.Config, v validator.Validator) (usecase.Settings, error) {
	strategy, ok := entity.ParseStrategy(strings.ToLower(strings.TrimSpace(cfg.GetString(prefix + "strategy"))))
	if !ok {
		return usecase.Settings{}, fmt.Errorf("%w: unknown strategy %q", entity.ErrConfiguration, cfg.GetString(prefix+"strategy"))
	}

	s := usecase.Settings{
		Strategy:        strategy,
		Originator:      stringOr(cfg, prefix+"originator", defaultOriginator),
		MobileAttribute: stringOr(cfg, prefix+"mobile_attribute", defaultMobileAttribute),
		DefaultRegion:   strings.ToUpper(stringOr(cfg, prefix+"default_region", phone.DefaultRegion)),
		ValidForSeconds: intOr(cfg, prefix+"valid_for_seconds", defaultValidFor),
		CodeLength:      intOr(cfg, prefix+"code_length", otp.DefaultLength),
		MessageTemplate: stringOr(cfg, prefix+"message", DefaultMessage),
		AllowPush:       cfg.GetBool(prefix + "allow_push"),
		AppKey:          strings.TrimSpace(cfg.GetString(prefix + "app_key")),
		ProviderTimeout: durationOr(cfg, prefix+"provider.timeout_seconds", sms.DefaultTimeout),
		DispatchGuard:   durationOr(cfg, prefix+"dispatch_guard_seconds", defaultDispatchGuard),
		StateTTL:        durationOr(cfg, prefix+"state_ttl_seconds", defaultStateTTL),
	}

	if err := v.Validate(s); err != nil {
		return usecase.Settings{}, errors.Join(entity.ErrConfiguration, err)
	}
	if err := sms.ValidateOriginator(s.Originator); err != nil {
		return usecase.Settings{}, errors.Join(entity.ErrConfiguration, err)
	}
	if s.AllowPush && s.AppKey == "" {
		return usecase.Settings{}, errors.Join(entity.ErrConfiguration, sms.ErrInvalidAppKey)
	}
	if s.StateTTL < time.Duration(s.ValidForSeconds)*time.Second {
		return usecase.Settings{}, fmt.Errorf("%w: state_ttl_seconds %d is shorter than valid_for_seconds %d",
			entity.ErrConfiguration, int(s.StateTTL/time.Second), s.ValidForSeconds)
	}

	return s, nil
}

func stringOr(cfg config.Config, key, def string) string {
	if v := strings.TrimSpace(cfg.GetString(key)); v != "" {
		return v
	}
	return def
}

func intOr(cfg config.Config, key string, def int) int {
	if !cfg.IsSet(key) {
		return def
	}
	return cfg.GetInt(key)
}

func durationOr(cfg config.Config, key string, def time.Duration) time.Duration {
	if !cfg.IsSet(key) {
		return def
	}
	return cfg.GetSecond(key)
}
