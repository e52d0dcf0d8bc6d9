package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type captureNotifier struct {
	mu     sync.Mutex
	events []DiscountRequested
	err    error
}

func (c *captureNotifier) NotifyDiscount(_ context.Context, evt DiscountRequested) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return c.err
}

type staticAdmins []models.User

func (s staticAdmins) ActiveAdmins(context.Context) ([]models.User, error) { return s, nil }

func sampleLine() models.CaseBillingItem {
	return models.CaseBillingItem{
		ID: 7, CaseID: "WO-1001", CaseType: "work_order",
		ArticleCode: "BEK-RAT", ArticleName: "Bekämpning råtta",
		DiscountPercent: decimal.NewFromInt(10),
		AddedByID:       11, AddedByName: "Tova Tekniker",
	}
}

func TestDispatcher_DeliversEventToAdmins(t *testing.T) {
	capture := &captureNotifier{}
	d := NewDispatcher(DispatcherDeps{
		Notifier: capture,
		Admins:   staticAdmins{{ID: 1, Role: models.RoleAdmin}, {ID: 2, Role: models.RoleAdmin}},
		Logger:   zaptest.NewLogger(t),
	})

	d.DiscountRequested(sampleLine())
	d.Wait()

	require.Len(t, capture.events, 1)
	evt := capture.events[0]
	require.NotEmpty(t, evt.EventID)
	require.Equal(t, []uint{1, 2}, evt.AdminIDs)
	require.Equal(t, "WO-1001", evt.CaseID)
	require.Equal(t, "Tova Tekniker", evt.TechnicianName)
	require.True(t, evt.DiscountPercent.Equal(decimal.NewFromInt(10)))
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	capture := &captureNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(DispatcherDeps{Notifier: capture, Logger: zaptest.NewLogger(t)})

	require.NotPanics(t, func() {
		d.DiscountRequested(sampleLine())
		d.Wait()
	})
	require.Len(t, capture.events, 1)
}

type blockingNotifier struct{}

func (blockingNotifier) NotifyDiscount(ctx context.Context, _ DiscountRequested) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcher_DoesNotBlockCaller(t *testing.T) {
	d := NewDispatcher(DispatcherDeps{Notifier: blockingNotifier{}, Timeout: 50 * time.Millisecond, Logger: zaptest.NewLogger(t)})

	start := time.Now()
	d.DiscountRequested(sampleLine())
	require.Less(t, time.Since(start), 40*time.Millisecond)
	d.Wait()
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	d.DiscountRequested(sampleLine())
	d.Wait()
}

func TestMulti_AttemptsEveryNotifier(t *testing.T) {
	failing := &captureNotifier{err: errors.New("boom")}
	ok := &captureNotifier{}
	err := Multi{failing, ok}.NotifyDiscount(context.Background(), DiscountRequested{EventID: "e1"})
	require.ErrorContains(t, err, "boom")
	require.Len(t, ok.events, 1)
}

func TestDBNotifier_OneRowPerAdmin(t *testing.T) {
	db := setupTestDB(t)
	for _, u := range []models.User{
		{Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true},
		{Email: "old-admin@example.com", Role: models.RoleAdmin, IsActive: false},
		{Email: "tech@example.com", Role: models.RoleTechnician, IsActive: true},
	} {
		require.NoError(t, db.Create(&u).Error)
	}

	d := NewDispatcher(DispatcherDeps{
		Notifier: DBNotifier{DB: db},
		Admins:   DBAdminDirectory{DB: db},
		Logger:   zaptest.NewLogger(t),
	})
	d.DiscountRequested(sampleLine())
	d.Wait()

	var rows []models.Notification
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, models.NotificationKindDiscountApproval, rows[0].Kind)
	require.Equal(t, "7", rows[0].Reference)
	require.Contains(t, rows[0].Body, "10.00%")
	require.Contains(t, rows[0].Body, "WO-1001")
	require.NotEmpty(t, rows[0].EventID)
}

func TestWebhookNotifier(t *testing.T) {
	var got DiscountRequested
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Event-ID")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	err := n.NotifyDiscount(context.Background(), DiscountRequested{EventID: "evt-1", LineID: 7, DiscountPercent: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.Equal(t, "evt-1", header)
	require.Equal(t, uint(7), got.LineID)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, time.Second).NotifyDiscount(context.Background(), DiscountRequested{EventID: "evt-2"})
	require.ErrorContains(t, err, "502")
}

func TestRedisNotifier(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()

	sub := client.Subscribe(ctx, "fieldbill-test")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := &RedisNotifier{Client: client, Channel: "fieldbill-test"}
	require.NoError(t, n.NotifyDiscount(ctx, DiscountRequested{EventID: "evt-3", LineID: 9}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var evt DiscountRequested
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &evt))
	require.Equal(t, "evt-3", evt.EventID)
}
