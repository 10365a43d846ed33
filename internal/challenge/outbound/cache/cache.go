package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/pkg/goerror"
	"github.com/shandysiswandi/stepup/internal/pkg/instrument"
	"github.com/shandysiswandi/stepup/internal/pkg/seal"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "stepup:challenge:"

type keyHasher interface {
	Sum(str string) string
}

// Cache keeps pending challenges in redis. Records are sealed before they
// are written and keys are derived from the pending id, so neither the
// recipient nor the id is readable from the store.
type Cache struct {
	client redis.Cmdable
	sealer seal.Sealer
	keys   keyHasher
	ttl    time.Duration
	ins    instrument.Instrumentation
}

func NewCache(client redis.Cmdable, sealer seal.Sealer, keys keyHasher, ttl time.Duration, ins instrument.Instrumentation) *Cache {
	return &Cache{
		client: client,
		sealer: sealer,
		keys:   keys,
		ttl:    ttl,
		ins:    ins,
	}
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("challenge.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *Cache) key(pendingID string) string {
	return keyPrefix + c.keys.Sum(pendingID)
}

func scope(pendingID string) seal.Scope {
	return seal.Scope{Subject: pendingID, Purpose: seal.PurposeChallengeRecord}
}

func (c *Cache) GetChallenge(ctx context.Context, pendingID string) (rec *entity.ChallengeRequest, err error) {
	ctx, span := c.startSpan(ctx, "GetChallenge")
	defer func() { c.endSpan(span, err) }()

	raw, err := c.client.Get(ctx, c.key(pendingID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, goerror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	plain, err := c.sealer.Open(raw, scope(pendingID))
	if err != nil {
		return nil, errors.Join(entity.ErrInvalidRecord, err)
	}

	rec = &entity.ChallengeRequest{}
	if err = json.Unmarshal(plain, rec); err != nil {
		return nil, errors.Join(entity.ErrInvalidRecord, err)
	}
	if rec.ID != pendingID {
		return nil, entity.ErrInvalidRecord
	}

	return rec, nil
}

func (c *Cache) SaveChallenge(ctx context.Context, rec *entity.ChallengeRequest) (err error) {
	ctx, span := c.startSpan(ctx, "SaveChallenge")
	defer func() { c.endSpan(span, err) }()

	if err = rec.Validate(); err != nil {
		return err
	}

	plain, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	sealed, err := c.sealer.Seal(plain, scope(rec.ID))
	if err != nil {
		return err
	}

	err = c.client.Set(ctx, c.key(rec.ID), sealed, c.ttl).Err()
	return err
}
