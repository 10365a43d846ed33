package mq

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shandysiswandi/stepup/internal/challenge/entity"
	"github.com/shandysiswandi/stepup/internal/pkg/instrument"
	"github.com/shandysiswandi/stepup/internal/pkg/messaging"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

// ChallengeEventMessage is the wire form of a state transition. It never
// carries the recipient or any code material.
type ChallengeEventMessage struct {
	PendingID  string    `json:"pending_id"`
	State      string    `json:"state"`
	Strategy   string    `json:"strategy"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Messaging struct {
	client  messaging.Publisher
	subject string
	ins     instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, subject string, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, subject: subject, ins: ins}
}

func (m *Messaging) PublishChallengeEvent(ctx context.Context, ev entity.ChallengeEvent) error {
	ctx, span := m.ins.Tracer("challenge.outbound.mq").Start(ctx, "PublishChallengeEvent")
	defer span.End()

	body, err := json.Marshal(ChallengeEventMessage{
		PendingID:  ev.PendingID,
		State:      ev.State.String(),
		Strategy:   ev.Strategy.String(),
		Reason:     ev.Reason,
		OccurredAt: ev.OccurredAt.UTC(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	msg := messaging.OutgoingMessage{
		Body: body,
		ID:   eventID(ev),
	}.WithHeader("Content-Type", "application/json")
	if cID := instrument.GetCorrelationID(ctx); cID != "" {
		msg = msg.WithHeader(keyOfCorrelationID, cID)
	}

	trace := map[string]string{}
	instrument.InjectTraceContext(ctx, trace)
	for k, v := range trace {
		msg = msg.WithHeader(k, v)
	}

	if _, err := m.client.Publish(ctx, m.subject, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// eventID is stable for a given transition, so a publish retried after a
// flush timeout is dropped by streams with duplicate detection.
func eventID(ev entity.ChallengeEvent) string {
	return ev.PendingID + ":" + ev.State.String() + ":" + strconv.FormatInt(ev.OccurredAt.UnixNano(), 10)
}
