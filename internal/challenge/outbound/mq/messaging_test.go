package mq_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/challenge/outbound/mq"
	"github.com/shandysiswandi/stepup/internal/pkg/instrument"
	"github.com/shandysiswandi/stepup/internal/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	dest string
	msg  messaging.OutgoingMessage
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, dest string, msg messaging.OutgoingMessage) (messaging.PublishResult, error) {
	f.dest = dest
	f.msg = msg
	return messaging.PublishResult{Subject: dest}, f.err
}

func header(msg messaging.OutgoingMessage, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishChallengeEvent(t *testing.T) {
	pub := &fakePublisher{}
	m := mq.NewMessaging(pub, "stepup.challenge.events", instrument.NewNoop())

	ctx := instrument.SetCorrelationID(context.Background(), "cid-1")
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	err := m.PublishChallengeEvent(ctx, entity.ChallengeEvent{
		PendingID:  "7c1e2f4a-9b3d-4e5f-8a6b-1c2d3e4f5a6b",
		State:      entity.StateSendFailed,
		Strategy:   entity.StrategyDelegated,
		Reason:     "provider down",
		OccurredAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, "stepup.challenge.events", pub.dest)
	assert.Equal(t, "cid-1", header(pub.msg, "cID"))
	assert.Equal(t, "application/json", header(pub.msg, "Content-Type"))
	assert.Equal(t, "7c1e2f4a-9b3d-4e5f-8a6b-1c2d3e4f5a6b:send_failed:"+strconv.FormatInt(at.UnixNano(), 10), pub.msg.ID)

	var got mq.ChallengeEventMessage
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	assert.Equal(t, "send_failed", got.State)
	assert.Equal(t, "delegated", got.Strategy)
	assert.Equal(t, "provider down", got.Reason)
	assert.Equal(t, time.UTC, got.OccurredAt.Location())
	assert.True(t, at.Equal(got.OccurredAt))
}

func TestPublishChallengeEventWithoutCorrelationID(t *testing.T) {
	pub := &fakePublisher{}
	m := mq.NewMessaging(pub, "subject", instrument.NewNoop())

	require.NoError(t, m.PublishChallengeEvent(context.Background(), entity.ChallengeEvent{PendingID: "p", State: entity.StateSent}))
	assert.Empty(t, header(pub.msg, "cID"))
}

func TestPublishChallengeEventError(t *testing.T) {
	boom := errors.New("nats down")
	m := mq.NewMessaging(&fakePublisher{err: boom}, "subject", instrument.NewNoop())

	err := m.PublishChallengeEvent(context.Background(), entity.ChallengeEvent{PendingID: "p"})
	assert.ErrorIs(t, err, boom)
}
