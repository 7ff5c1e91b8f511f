package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/staybook-backend/pkg/config"
	"github.com/angelmondragon/staybook-backend/pkg/db/models"
)

func openOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:outbox_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`).Error)
	return conn
}

func emitOrderCreated(t *testing.T, conn *gorm.DB, svc *Service) OrderCreatedEvent {
	t.Helper()
	data := OrderCreatedEvent{
		OrderID:   uuid.New(),
		ListingID: uuid.New(),
		BuyerID:   uuid.New(),
		SessionID: "cs_test_1",
		CreatedAt: time.Now().UTC(),
	}
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     EventOrderCreated,
			AggregateType: AggregateOrder,
			AggregateID:   data.OrderID,
			Actor:         &ActorRef{UserID: data.BuyerID, Source: "confirm"},
			Data:          data,
		})
	})
	require.NoError(t, err)
	return data
}

func TestEmitAndResolveRoundTrip(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	data := emitOrderCreated(t, conn, svc)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	require.Len(t, rows, 1)
	assert.Equal(t, data.OrderID, rows[0].AggregateID)

	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "order-events"})
	require.NoError(t, err)
	resolved, err := reg.Resolve(rows[0])
	require.NoError(t, err)
	assert.Equal(t, "order-events", resolved.Descriptor.Topic)
	assert.Equal(t, 1, resolved.Envelope.Version)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	payload, ok := resolved.Payload.(*OrderCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "cs_test_1", payload.SessionID)
	assert.Equal(t, data.BuyerID, payload.BuyerID)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	assert.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
}

func TestMarkPublishedAndFailed(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	emitOrderCreated(t, conn, svc)
	emitOrderCreated(t, conn, svc)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 2)
		if err != nil {
			return err
		}
		if err := repo.MarkPublishedTx(tx, rows[0].ID); err != nil {
			return err
		}
		if err := repo.MarkFailedTx(tx, rows[1].ID, errors.New("topic unavailable")); err != nil {
			return err
		}
		return nil
	}))

	var failed models.OutboxEvent
	require.NoError(t, conn.First(&failed, "id = ?", rows[1].ID).Error)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "topic unavailable", *failed.LastError)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 2)
		return err
	}))
	require.Len(t, rows, 1, "published rows are not fetched again")

	require.NoError(t, repo.MarkTerminalTx(conn, rows[0].ID, errors.New("bad payload"), 2))
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 2)
		return err
	}))
	assert.Empty(t, rows, "terminal rows exhaust their attempts")
}

func TestResolveRejectsUnknownAndMalformed(t *testing.T) {
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "order-events"})
	require.NoError(t, err)

	_, err = reg.Resolve(models.OutboxEvent{EventType: "listing.deleted", AggregateType: "listing"})
	var nonRetry NonRetryableError
	assert.True(t, errors.As(err, &nonRetry))

	_, err = reg.Resolve(models.OutboxEvent{EventType: EventOrderCreated, AggregateType: "listing"})
	assert.True(t, errors.As(err, &nonRetry))

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     EventOrderCreated,
		AggregateType: AggregateOrder,
		Payload:       json.RawMessage(`{"version":1,"data":"not-an-object"}`),
	})
	assert.True(t, errors.As(err, &nonRetry))

	_, err = NewEventRegistry(config.PubSubConfig{})
	assert.Error(t, err)
}

func TestDeletePublishedBeforeKeepsPendingRows(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)
	old := time.Now().UTC().Add(-48 * time.Hour)
	published := old
	rows := []models.OutboxEvent{
		{ID: uuid.New(), EventType: EventOrderCreated, AggregateType: AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old, PublishedAt: &published},
		{ID: uuid.New(), EventType: EventOrderCreated, AggregateType: AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old, AttemptCount: 10},
		{ID: uuid.New(), EventType: EventOrderCreated, AggregateType: AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old, AttemptCount: 2},
		{ID: uuid.New(), EventType: EventOrderCreated, AggregateType: AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: time.Now().UTC(), PublishedAt: &published},
	}
	for _, row := range rows {
		require.NoError(t, conn.Create(&row).Error)
	}

	var deleted int64
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = repo.DeletePublishedBefore(context.Background(), tx, time.Now().UTC().Add(-24*time.Hour), 10)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var left int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&left).Error)
	assert.Equal(t, int64(2), left)
}
