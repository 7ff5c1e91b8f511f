package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/staybook-backend/internal/users"
	"github.com/angelmondragon/staybook-backend/pkg/db"
	"github.com/angelmondragon/staybook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/outbox"
	"github.com/angelmondragon/staybook-backend/pkg/stripe"
)

type fakeProcessor struct {
	sessions map[string]*stripe.Session
	err      error
	calls    int
}

func (f *fakeProcessor) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*stripe.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodePaymentProvider, "no such session")
	}
	return sess, nil
}

// blindRepository hides existing orders from the pre-check so the insert races into the
// unique index.
type blindRepository struct {
	Repository
}

func (b blindRepository) WithTx(tx *gorm.DB) Repository {
	return blindRepository{Repository: b.Repository.WithTx(tx)}
}

func (b blindRepository) FindBySessionID(context.Context, string) (*models.Order, error) {
	return nil, nil
}

type fixture struct {
	conn      *gorm.DB
	svc       *Service
	processor *fakeProcessor
	buyer     *models.User
	listing   *models.Listing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:orders_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.EnsureSQLiteSchema(context.Background(), conn))

	acct := "acct_seller"
	seller := &models.User{ID: uuid.New(), Email: "host@example.com", Name: "Host", PasswordHash: "x", PayoutAccountID: &acct}
	buyer := &models.User{ID: uuid.New(), Email: "guest@example.com", Name: "Guest", PasswordHash: "x"}
	require.NoError(t, conn.Create(seller).Error)
	require.NoError(t, conn.Create(buyer).Error)
	listing := &models.Listing{ID: uuid.New(), Title: "Cabin", Price: decimal.NewFromInt(100), PostedByID: seller.ID}
	require.NoError(t, conn.Omit("PostedBy").Create(listing).Error)

	f := &fixture{conn: conn, processor: &fakeProcessor{sessions: map[string]*stripe.Session{}}, buyer: buyer, listing: listing}
	f.svc = f.newService(t, NewRepository(conn))
	return f
}

func (f *fixture) newService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repository: repo,
		Users:      users.NewRepository(f.conn),
		TxRunner:   db.NewFromConn(f.conn),
		Outbox:     outbox.NewService(outbox.NewRepository(f.conn), nil),
		Processor:  f.processor,
	})
	require.NoError(t, err)
	return svc
}

func (f *fixture) stage(t *testing.T, sessionID, paymentStatus string) *stripe.Session {
	t.Helper()
	sess := &stripe.Session{
		ID:            sessionID,
		Status:        stripe.SessionStatusComplete,
		PaymentStatus: paymentStatus,
		Metadata: map[string]string{
			stripe.MetadataBuyerID:   f.buyer.ID.String(),
			stripe.MetadataListingID: f.listing.ID.String(),
		},
	}
	f.processor.sessions[sessionID] = sess
	raw, err := json.Marshal(sess)
	require.NoError(t, err)
	require.NoError(t, users.NewRepository(f.conn).SetPendingSession(context.Background(), f.buyer.ID, raw, time.Now().UTC()))
	return sess
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func (f *fixture) pendingSessionID(t *testing.T) string {
	t.Helper()
	u, err := users.NewRepository(f.conn).FindByID(context.Background(), f.buyer.ID)
	require.NoError(t, err)
	ref, _ := u.PendingSessionRef()
	return ref.ID
}

func TestConfirmWithoutPendingSessionIsNoop(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ConfirmAndRecord(context.Background(), f.buyer.ID, f.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: StatusNothingPending}, res)
	assert.Zero(t, f.processor.calls)
	assert.Zero(t, f.orderCount(t))
}

func TestConfirmUnpaidSessionRecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "cs_unpaid", stripe.PaymentStatusUnpaid)

	res, err := f.svc.ConfirmAndRecord(context.Background(), f.buyer.ID, f.listing.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StatusPending, res.Status)
	assert.Zero(t, f.orderCount(t))
	assert.Equal(t, "cs_unpaid", f.pendingSessionID(t), "unpaid sessions stay staged")
}

func TestConfirmPaidSessionRecordsExactlyOneOrder(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "cs_paid", stripe.PaymentStatusPaid)
	ctx := context.Background()

	res, err := f.svc.ConfirmAndRecord(ctx, f.buyer.ID, f.listing.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StatusRecorded, res.Status)
	require.NotNil(t, res.OrderID)
	assert.Equal(t, int64(1), f.orderCount(t))
	assert.Empty(t, f.pendingSessionID(t), "pending session is cleared with the insert")

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", *res.OrderID).Error)
	assert.Equal(t, "cs_paid", order.SessionID)
	assert.Equal(t, f.listing.ID, order.ListingID)
	assert.Equal(t, f.buyer.ID, order.OrderedByID)
	assert.Contains(t, string(order.Session), `"payment_status":"paid"`)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, outbox.EventOrderCreated, events[0].EventType)
	assert.Equal(t, order.ID, events[0].AggregateID)

	res, err = f.svc.ConfirmAndRecord(ctx, f.buyer.ID, f.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNothingPending, res.Status)

	res, err = f.svc.ReconcileSession(ctx, ReconcileInput{
		BuyerID:   f.buyer.ID,
		ListingID: f.listing.ID,
		Session:   f.processor.sessions["cs_paid"],
		Source:    SourceWebhook,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StatusAlreadyRecorded, res.Status)
	assert.Equal(t, int64(1), f.orderCount(t))
}

func TestUniqueViolationMapsToAlreadyRecorded(t *testing.T) {
	f := newFixture(t)
	sess := f.stage(t, "cs_race", stripe.PaymentStatusPaid)
	ctx := context.Background()

	_, err := f.svc.ReconcileSession(ctx, ReconcileInput{BuyerID: f.buyer.ID, ListingID: f.listing.ID, Session: sess, Source: SourceWebhook})
	require.NoError(t, err)

	f.stage(t, "cs_race", stripe.PaymentStatusPaid)
	racing := f.newService(t, blindRepository{Repository: NewRepository(f.conn)})

	res, err := racing.ConfirmAndRecord(ctx, f.buyer.ID, f.listing.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StatusAlreadyRecorded, res.Status)
	assert.Equal(t, int64(1), f.orderCount(t))
	assert.Empty(t, f.pendingSessionID(t), "pending session is cleared after a lost race")
}

func TestReconcileKeepsNewerPendingSession(t *testing.T) {
	f := newFixture(t)
	old := f.stage(t, "cs_old", stripe.PaymentStatusPaid)
	f.stage(t, "cs_new", stripe.PaymentStatusUnpaid)

	res, err := f.svc.ReconcileSession(context.Background(), ReconcileInput{
		BuyerID: f.buyer.ID, ListingID: f.listing.ID, Session: old, Source: SourceWebhook,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRecorded, res.Status)
	assert.Equal(t, "cs_new", f.pendingSessionID(t))
}

func TestConfirmRejectsSessionForOtherListing(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "cs_paid", stripe.PaymentStatusPaid)

	_, err := f.svc.ConfirmAndRecord(context.Background(), f.buyer.ID, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, f.orderCount(t))
}

func TestConfirmErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConfirmAndRecord(ctx, uuid.New(), f.listing.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.ConfirmAndRecord(ctx, f.buyer.ID, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.stage(t, "cs_1", stripe.PaymentStatusPaid)
	f.processor.err = pkgerrors.New(pkgerrors.CodePaymentProvider, "payment processor timed out")
	_, err = f.svc.ConfirmAndRecord(ctx, f.buyer.ID, f.listing.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentProvider))
	assert.Equal(t, "cs_1", f.pendingSessionID(t))
}

func TestListBuyerOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		sess := f.stage(t, fmt.Sprintf("cs_%d", i), stripe.PaymentStatusPaid)
		_, err := f.svc.ReconcileSession(ctx, ReconcileInput{BuyerID: f.buyer.ID, ListingID: f.listing.ID, Session: sess, Source: SourceConfirm})
		require.NoError(t, err)
	}

	list, err := f.svc.ListBuyerOrders(ctx, f.buyer.ID, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svc.ListBuyerOrders(ctx, uuid.New(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
