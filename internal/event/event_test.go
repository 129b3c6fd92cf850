package event

import (
	"context"
	"errors"
	"testing"

	"payment-orchestrator/internal/data/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleEvent() Event {
	trx := &entity.PaymentTransaction{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		TenantID:     "tenant-1",
		ExternalID:   "PAY-1",
		Amount:       decimal.NewFromInt(10),
		Currency:     "USD",
		Status:       entity.TransactionStatusCompleted,
	}
	return New(PaymentCompleted, trx, entity.AuditLevelInfo, "payment completed", map[string]any{"method_used": "stripe"})
}

func TestDispatcher_RunsHooksInOrderAndSwallowsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	var calls []string
	record := func(name string, err error) Hook {
		return HookFunc{HookName: name, Fn: func(ctx context.Context, evt Event) error {
			calls = append(calls, name)
			return err
		}}
	}

	d := NewDispatcher(zap.New(core),
		record("audit", nil),
		record("broken", errors.New("boom")),
		record("stream", nil),
	)
	d.Dispatch(context.Background(), sampleEvent())

	assert.Equal(t, []string{"audit", "broken", "stream"}, calls)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Event hook failed", entry.Message)
	assert.Equal(t, "broken", entry.ContextMap()["hook"])
}

func TestStreamPublisher_Handle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := NewStreamPublisher(client, "payment_events", 1000)
	evt := sampleEvent()
	require.NoError(t, pub.Handle(context.Background(), evt))

	msgs, err := client.XRange(context.Background(), "payment_events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	values := msgs[0].Values
	assert.Equal(t, "payment.completed", values["type"])
	assert.Equal(t, evt.TransactionID.String(), values["transaction_id"])
	assert.Equal(t, "completed", values["status"])
	assert.JSONEq(t, `{"method_used":"stripe"}`, values["payload"].(string))
}

func TestStreamPublisher_ReportsRedisFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewStreamPublisher(client, "payment_events", 0).Handle(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xadd payment.completed")
}
