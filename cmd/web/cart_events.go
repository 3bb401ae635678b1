package main

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"finitefield.org/manga-web/internal/debounce"
	mw "finitefield.org/manga-web/internal/middleware"
	"finitefield.org/manga-web/internal/observability"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = 30 * time.Second
	eventsReadLimit  = 512
)

// cartEvent is the message pushed to other tabs of the same session.
type cartEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts handshakes without an Origin header (non-browser
// clients) or from this host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// CartEventsHandler streams cart changes made by other tabs of the session.
// Writes tagged with this socket's tab id are skipped and bursts are
// coalesced before the count is sent.
func (a *app) CartEventsHandler(w http.ResponseWriter, r *http.Request) {
	key := a.cartKey(r)
	tab := mw.TabID(r.Context())
	log := observability.FromContext(r.Context()).Named("events").With(zap.String("tab_id", tab))

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if err := a.streamCartEvents(r.Context(), conn, key, tab); err != nil {
		log.Debug("cart event stream ended", zap.Error(err))
	}
}

func (a *app) streamCartEvents(ctx context.Context, conn *websocket.Conn, key, tab string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, unsubscribe, err := a.carts.Backend().Subscribe(ctx, key)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(eventsWriteWait))
		return err
	}
	defer unsubscribe()
	a.metrics.SubscriberOpened()
	defer a.metrics.SubscriberClosed()

	// The reader only exists to notice the client going away and to answer
	// pings; clients send nothing else.
	conn.SetReadLimit(eventsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	fire := make(chan struct{}, 1)
	coalesce := debounce.New(a.cfg.Cart.ChangeCoalesce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
	defer coalesce.Stop()

	ping := time.NewTicker(eventsPingPeriod)
	defer ping.Stop()

	store := a.carts.For(key)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.streams.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(eventsWriteWait))
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if tab != "" && c.Origin == tab {
				continue
			}
			coalesce.Trigger()
		case <-fire:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(cartEvent{Type: eventCartChanged, Count: store.ItemCount(ctx)}); err != nil {
				return err
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return err
			}
		}
	}
}
