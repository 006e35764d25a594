package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/user"
)

func TestNotificationStreamDelivers(t *testing.T) {
	router, application, store := newTestRouterOpts(t, RouterOptions{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	u, err := store.CreateUser(context.Background(), user.User{
		Email: "stream@example.com", Name: "Stream", Role: user.RoleUser, ReferralCode: "ST1",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notifications/stream?token=" + tokenFor(t, u)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close()

	received := make(chan notification.Notification, 1)
	go func() {
		var n notification.Notification
		if err := conn.ReadJSON(&n); err == nil {
			received <- n
		}
	}()

	// The handler subscribes after the handshake completes, so keep
	// notifying until the hub delivers.
	deadline := time.After(3 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		application.Notifications.Notify(context.Background(), u.ID, notification.CategoryWallet,
			"Points credited", "Your balance was updated.", "")
		select {
		case n := <-received:
			if n.Title != "Points credited" || n.UserID != u.ID {
				t.Fatalf("unexpected notification: %+v", n)
			}
			return
		case <-deadline:
			t.Fatalf("no notification received over the stream")
		case <-ticker.C:
		}
	}
}

func TestNotificationStreamRequiresToken(t *testing.T) {
	router, _, _ := newTestRouterOpts(t, RouterOptions{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notifications/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatalf("expected handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}

func TestNotificationStreamRejectsBadToken(t *testing.T) {
	router, _, _ := newTestRouterOpts(t, RouterOptions{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notifications/stream?token=garbage"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatalf("expected handshake to fail with a bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}
