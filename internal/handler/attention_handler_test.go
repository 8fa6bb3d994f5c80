package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attention-engine/internal/model"
	"attention-engine/internal/service/attention"
)

type stubStore struct {
	items map[string]*model.AttentionItem
}

func (s *stubStore) Upsert(_ context.Context, item *model.AttentionItem) error {
	s.items[item.EmailID] = item
	return nil
}

func (s *stubStore) Find(_ context.Context, _ model.AccountID, emailID string) (*model.AttentionItem, error) {
	item, ok := s.items[emailID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return item, nil
}

func (s *stubStore) List(_ context.Context, _ model.AccountID, _ bool, _ time.Time) ([]model.AttentionItem, error) {
	var out []model.AttentionItem
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *stubStore) SetDismissed(_ context.Context, _ model.AccountID, emailID string, reason model.DismissReason, _ time.Time) error {
	item, ok := s.items[emailID]
	if !ok {
		return model.ErrNotFound
	}
	item.Status = model.AttentionDismissed
	item.DismissedReason = reason
	return nil
}

func (s *stubStore) SetSnoozed(_ context.Context, _ model.AccountID, emailID string, until time.Time, _ time.Time) error {
	if _, ok := s.items[emailID]; !ok {
		return model.ErrNotFound
	}
	return nil
}

func (s *stubStore) SetFirstViewed(_ context.Context, _ model.AccountID, emailID string, _ time.Time) error {
	if _, ok := s.items[emailID]; !ok {
		return model.ErrNotFound
	}
	return nil
}

func (s *stubStore) SetActed(_ context.Context, _ model.AccountID, emailID, actionType string, _ time.Time) error {
	item, ok := s.items[emailID]
	if !ok {
		return model.ErrNotFound
	}
	item.Status = model.AttentionActed
	item.ActionType = actionType
	return nil
}

func (s *stubStore) PurgeExpired(_ context.Context, _ time.Time) (int, error) { return 0, nil }

func newTestRouter(store *stubStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAttentionHandler(attention.NewService(store, zap.NewNop()), zap.NewNop())

	r := gin.New()
	grp := r.Group("/accounts/:account")
	grp.Use(func(c *gin.Context) {
		SetAccount(c, model.AccountID(c.Param("account")))
	})
	grp.GET("/attention", h.List)
	grp.POST("/attention/:emailId/dismiss", h.Dismiss)
	grp.POST("/attention/:emailId/snooze", h.Snooze)
	grp.POST("/attention/:emailId/acted", h.MarkActed)
	return r
}

func seedStore() *stubStore {
	return &stubStore{items: map[string]*model.AttentionItem{
		"m1": {Account: "church", EmailID: "m1", Status: model.AttentionActive},
	}}
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListAttention(t *testing.T) {
	r := newTestRouter(seedStore())

	w := do(r, http.MethodGet, "/accounts/church/attention", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "m1")
}

func TestDismissStatusMapping(t *testing.T) {
	r := newTestRouter(seedStore())

	// invalid enum → 400, even when the item does not exist
	w := do(r, http.MethodPost, "/accounts/church/attention/missing/dismiss", `{"reason":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// unknown email id → 404
	w = do(r, http.MethodPost, "/accounts/church/attention/missing/dismiss", `{"reason":"handled"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// happy path
	w = do(r, http.MethodPost, "/accounts/church/attention/m1/dismiss", `{"reason":"false_positive"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSnoozeRejectsPast(t *testing.T) {
	r := newTestRouter(seedStore())

	w := do(r, http.MethodPost, "/accounts/church/attention/m1/snooze", `{"until":"2020-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/accounts/church/attention/m1/snooze", `{"until":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActedRequiresActionType(t *testing.T) {
	r := newTestRouter(seedStore())

	w := do(r, http.MethodPost, "/accounts/church/attention/m1/acted", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/accounts/church/attention/m1/acted", `{"action_type":"archived"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
