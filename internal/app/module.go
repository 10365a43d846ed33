package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/stepup/internal/challenge"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.challenge.enabled") {
		if err := challenge.New(challenge.Dependency{
			CacheConn:   a.cacheConn,
			Goroutine:   a.goroutine,
			Router:      a.router,
			Idempotency: a.idemp,
			Messaging:   a.messaging,
			Sealer:      a.sealer,
			Config:      a.config,
			Instrument:  a.ins,
			UUID:        a.ruuid,
			HMAC:        a.hmac,
			Bcrypt:      a.bcrypt,
			Argon2ID:    a.argon2id,
			OTP:         a.otp,
			Clock:       a.clock,
			Validator:   a.validator,
			JWT:         a.jwt,
		}); err != nil {
			slog.Error("failed to init module challenge", "error", err)
			os.Exit(1)
		}
	}
}
