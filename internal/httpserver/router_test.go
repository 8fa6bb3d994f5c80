package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgconfig "attention-engine/pkg/config"

	"attention-engine/internal/config"
	"attention-engine/internal/handler"
	"attention-engine/internal/model"
	"attention-engine/internal/service/attention"
)

const testSecret = "router-test-secret"

// listStore serves a fixed item set in a fixed order so two responses
// can be compared byte for byte.
type listStore struct {
	items []model.AttentionItem
}

func (s *listStore) Upsert(_ context.Context, _ *model.AttentionItem) error { return nil }
func (s *listStore) Find(_ context.Context, _ model.AccountID, _ string) (*model.AttentionItem, error) {
	return nil, model.ErrNotFound
}
func (s *listStore) List(_ context.Context, account model.AccountID, _ bool, _ time.Time) ([]model.AttentionItem, error) {
	var out []model.AttentionItem
	for _, item := range s.items {
		if item.Account == account {
			out = append(out, item)
		}
	}
	return out, nil
}
func (s *listStore) SetDismissed(_ context.Context, _ model.AccountID, _ string, _ model.DismissReason, _ time.Time) error {
	return model.ErrNotFound
}
func (s *listStore) SetSnoozed(_ context.Context, _ model.AccountID, _ string, _ time.Time, _ time.Time) error {
	return model.ErrNotFound
}
func (s *listStore) SetFirstViewed(_ context.Context, _ model.AccountID, _ string, _ time.Time) error {
	return model.ErrNotFound
}
func (s *listStore) SetActed(_ context.Context, _ model.AccountID, _, _ string, _ time.Time) error {
	return model.ErrNotFound
}
func (s *listStore) PurgeExpired(_ context.Context, _ time.Time) (int, error) { return 0, nil }

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	store := &listStore{items: []model.AttentionItem{
		{Account: "church", EmailID: "m1", From: "pastor@church.example.org", Subject: "hello",
			Method: model.MethodVIP, Confidence: 1.0, Status: model.AttentionActive,
			CreatedAt: now, StatusChangedAt: now},
		{Account: "church", EmailID: "m2", From: "bank@church.example.org", Subject: "statement",
			Method: model.MethodProfile, Confidence: 0.85, Status: model.AttentionActive,
			CreatedAt: now, StatusChangedAt: now},
	}}
	svc := attention.NewService(store, zap.NewNop())

	cfg := &config.Config{
		JWT:      pkgconfig.JWTConfig{Secret: testSecret},
		Accounts: []config.AccountConfig{{Name: "church"}},
	}
	h := Handlers{Attention: handler.NewAttentionHandler(svc, zap.NewNop())}
	return NewRouter(h, cfg, zap.NewNop(), nil)
}

func bearerToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func getAttention(t *testing.T, r *Router, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/church/attention", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

// The caller's identity authenticates the request; the account path
// segment alone selects the data. Two different callers reading the
// same account must see exactly the same items.
func TestSameAccountReadIdenticalAcrossIdentities(t *testing.T) {
	r := newTestRouter(t)

	alice := getAttention(t, r, bearerToken(t, "alice@example.com"))
	bob := getAttention(t, r, bearerToken(t, "bob@example.com"))

	require.Equal(t, http.StatusOK, alice.Code)
	require.Equal(t, http.StatusOK, bob.Code)
	assert.Equal(t, alice.Body.Bytes(), bob.Body.Bytes())
	assert.Contains(t, alice.Body.String(), "m1")
	assert.Contains(t, alice.Body.String(), "m2")
}

func TestMissingTokenRejected(t *testing.T) {
	r := newTestRouter(t)

	w := getAttention(t, r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgedTokenRejected(t *testing.T) {
	r := newTestRouter(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "mallory@example.com"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	w := getAttention(t, r, signed)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnknownAccountRejectedAfterAuth(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/ghost/attention", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "alice@example.com"))
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
