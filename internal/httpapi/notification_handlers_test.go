package httpapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/notify"
)

func TestListNotifications(t *testing.T) {
	h := newHarness(t)

	var gotUnreadOnly bool
	h.notifs.listFn = func(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int, beforeID *uuid.UUID) ([]*domain.Notification, error) {
		gotUnreadOnly = unreadOnly
		return []*domain.Notification{
			{ID: uuid.New(), UserID: userID, MessageID: uuid.New(), ChannelID: uuid.New(), ServerID: uuid.New()},
		}, nil
	}

	w := h.do(t, http.MethodGet, "/api/notifications?unread=true", h.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !gotUnreadOnly {
		t.Error("expected unread filter to pass through")
	}
	body := decodeBody(t, w)
	data, ok := body["data"].([]interface{})
	if !ok || len(data) != 1 {
		t.Fatalf("expected 1 notification in data, got %v", body["data"])
	}
}

func TestUnreadCount(t *testing.T) {
	h := newHarness(t)
	h.notifs.unreadCountFn = func(ctx context.Context, userID uuid.UUID) (int, error) {
		return 7, nil
	}

	w := h.do(t, http.MethodGet, "/api/notifications/unread-count", h.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["unread"] != float64(7) {
		t.Errorf("expected unread 7, got %v", body["unread"])
	}
}

func TestMarkRead(t *testing.T) {
	h := newHarness(t)
	notifID := uuid.New()

	var marked bool
	h.notifs.markReadFn = func(ctx context.Context, userID, notificationID uuid.UUID) error {
		marked = userID == h.user.ID && notificationID == notifID
		return nil
	}

	w := h.do(t, http.MethodPost, "/api/notifications/"+notifID.String()+"/read", h.token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if !marked {
		t.Error("expected mark read with caller and path ids")
	}
}

func TestMarkReadNotOwned(t *testing.T) {
	h := newHarness(t)
	h.notifs.markReadFn = func(ctx context.Context, userID, notificationID uuid.UUID) error {
		return db.ErrNotFound
	}

	w := h.do(t, http.MethodPost, "/api/notifications/"+uuid.NewString()+"/read", h.token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestMarkAllRead(t *testing.T) {
	h := newHarness(t)
	h.notifs.markAllReadFn = func(ctx context.Context, userID uuid.UUID) (int64, error) {
		return 12, nil
	}

	w := h.do(t, http.MethodPost, "/api/notifications/read-all", h.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["updated"] != float64(12) {
		t.Errorf("expected updated 12, got %v", body["updated"])
	}
}

func TestSetNotificationPref(t *testing.T) {
	h := newHarness(t)
	channelID := uuid.New()

	var gotEnabled bool
	h.notifs.setChannelPrefFn = func(ctx context.Context, userID, cID uuid.UUID, enabled bool) error {
		gotEnabled = enabled
		return nil
	}

	path := "/api/channels/" + channelID.String() + "/notification-pref"
	w := h.do(t, http.MethodPut, path, h.token, map[string]bool{"enabled": false})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if gotEnabled {
		t.Error("expected enabled false to pass through")
	}
}

func TestSetNotificationPrefNoAccess(t *testing.T) {
	h := newHarness(t)
	h.notifs.setChannelPrefFn = func(ctx context.Context, userID, channelID uuid.UUID, enabled bool) error {
		return notify.ErrNoAccess
	}

	path := "/api/channels/" + uuid.NewString() + "/notification-pref"
	w := h.do(t, http.MethodPut, path, h.token, map[string]bool{"enabled": true})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}
