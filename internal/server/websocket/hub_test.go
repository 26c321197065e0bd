package websocket

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/pkg/config"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Registration happens just after the upgrade; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 1 {
			return conn
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("client never registered with the hub")
	return nil
}

func TestBroadcastPayment(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, zerolog.Nop())
	conn := dialHub(t, hub)

	hub.BroadcastPayment(domain.Payment{
		ID:     "p1",
		TxRef:  "abc",
		Status: domain.StatusConfirmed,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update StatusUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	if update.Type != "payment_status" {
		t.Errorf("type = %s, want payment_status", update.Type)
	}
	if update.PaymentID != "p1" || update.TxRef != "abc" {
		t.Errorf("update = %+v", update)
	}
	if update.Status != string(domain.StatusConfirmed) {
		t.Errorf("status = %s, want confirmed", update.Status)
	}
}

func TestBroadcastConcurrent(t *testing.T) {
	// Verification passes broadcast from concurrent goroutines; every frame
	// must arrive intact on the single shared connection.
	hub := NewHub(config.WebSocketConfig{}, zerolog.Nop())
	conn := dialHub(t, hub)

	const senders = 8
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			hub.BroadcastPayment(domain.Payment{
				ID:     fmt.Sprintf("p%d", n),
				Status: domain.StatusConfirmed,
			})
		}(i)
	}
	wg.Wait()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	seen := make(map[string]bool)
	for i := 0; i < senders; i++ {
		var update StatusUpdate
		if err := conn.ReadJSON(&update); err != nil {
			t.Fatalf("failed to read broadcast %d: %v", i, err)
		}
		if update.Type != "payment_status" {
			t.Errorf("type = %s, want payment_status", update.Type)
		}
		seen[update.PaymentID] = true
	}
	if len(seen) != senders {
		t.Errorf("received %d distinct updates, want %d", len(seen), senders)
	}
}

func TestBroadcastDropsClosedClients(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, zerolog.Nop())
	conn := dialHub(t, hub)
	conn.Close()

	// Both sends must survive the dead client.
	hub.BroadcastPayment(domain.Payment{ID: "p1", Status: domain.StatusFailed})
	hub.BroadcastPayment(domain.Payment{ID: "p2", Status: domain.StatusFailed})
}
