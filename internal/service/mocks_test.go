package service

import (
	"context"
	"course-checkout/internal/client"
	"course-checkout/internal/config"
	"course-checkout/internal/identity"
	"course-checkout/internal/model"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// mockAdapter implements both ProviderAdapter and ChargeCapturer.
type mockAdapter struct {
	mu                      sync.Mutex
	network                 model.Network
	CreateChargeFunc        func(ctx context.Context, intent client.ChargeIntent) (*client.ChargeResult, error)
	ResolveNotificationFunc func(ctx context.Context, n client.Notification) (*client.ConfirmedPayment, error)
	CaptureChargeFunc       func(ctx context.Context, reference string) (*client.ConfirmedPayment, error)
	CreateCalls             int
	ResolveCalls            int
	CaptureCalls            int
	LastIntent              client.ChargeIntent
}

func newMockAdapter(network model.Network) *mockAdapter {
	return &mockAdapter{network: network}
}

func (m *mockAdapter) Network() model.Network {
	return m.network
}

func (m *mockAdapter) CreateCharge(ctx context.Context, intent client.ChargeIntent) (*client.ChargeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	m.LastIntent = intent
	if m.CreateChargeFunc != nil {
		return m.CreateChargeFunc(ctx, intent)
	}
	return &client.ChargeResult{ProviderReference: "ref-1", RedirectURL: "https://provider.example/pay/ref-1"}, nil
}

func (m *mockAdapter) ResolveNotification(ctx context.Context, n client.Notification) (*client.ConfirmedPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResolveCalls++
	if m.ResolveNotificationFunc != nil {
		return m.ResolveNotificationFunc(ctx, n)
	}
	return nil, nil
}

func (m *mockAdapter) CaptureCharge(ctx context.Context, reference string) (*client.ConfirmedPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CaptureCalls++
	if m.CaptureChargeFunc != nil {
		return m.CaptureChargeFunc(ctx, reference)
	}
	return nil, nil
}

// preferenceOnly hides CaptureCharge, like a preference style network.
type preferenceOnly struct {
	client.ProviderAdapter
}

type mockGranter struct {
	mu          sync.Mutex
	GrantFunc   func(ctx context.Context, req GrantRequest) (*model.Entitlement, error)
	Calls       int
	LastRequest GrantRequest
}

func (m *mockGranter) Grant(ctx context.Context, req GrantRequest) (*model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.LastRequest = req
	if m.GrantFunc != nil {
		return m.GrantFunc(ctx, req)
	}
	return &model.Entitlement{ID: "ent-1", UserID: req.Payload.UserID, ProviderReference: req.ProviderReference}, nil
}

type staticExchanger struct {
	session identity.Session
}

func (e staticExchanger) Exchange(ctx context.Context, credential string) (*identity.Session, error) {
	s := e.session
	return &s, nil
}

// callerFor produces a Caller the only way there is: through the resolver.
func callerFor(t *testing.T, userID, email string) identity.Caller {
	t.Helper()
	resolver := identity.NewResolver(staticExchanger{session: identity.Session{UserID: userID, Email: email}})
	caller, err := resolver.Resolve(context.Background(), "Bearer test-session")
	require.NoError(t, err)
	return caller
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := client.OpenDatabase(config.Database{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "checkout.db") + "?_busy_timeout=5000",
	})
	require.NoError(t, err)
	return db
}

func seedItem(t *testing.T, db *gorm.DB, item model.PurchasableItem, prices ...model.PriceRow) {
	t.Helper()
	require.NoError(t, db.Create(&item).Error)
	for i := range prices {
		prices[i].ItemID = item.ID
		require.NoError(t, db.Create(&prices[i]).Error)
	}
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon model.Coupon) {
	t.Helper()
	require.NoError(t, db.Create(&coupon).Error)
}

func usageCount(t *testing.T, db *gorm.DB, couponID string) int {
	t.Helper()
	var coupon model.Coupon
	require.NoError(t, db.First(&coupon, "id = ?", couponID).Error)
	return coupon.UsageCount
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

var course101 = model.PurchasableItem{
	ID:       "item-101",
	Kind:     model.ItemKindCourse,
	Slug:     "course-101",
	Title:    "Seguridad en obra 101",
	IsActive: true,
}
