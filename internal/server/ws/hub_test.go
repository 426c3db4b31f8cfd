package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHubSendsStatusAndPublishes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(nil, func() domain.PortfolioStatus {
		return domain.PortfolioStatus{Cash: 1_000_000, MaxPositions: 5}
	}, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	env := readEnvelope(t, conn)
	assert.Equal(t, "status", env.Channel)
	var st domain.PortfolioStatus
	require.NoError(t, json.Unmarshal(env.Payload, &st))
	assert.Equal(t, 1_000_000.0, st.Cash)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(ctx, domain.ChannelTrades, []byte(`{"event":"trade_buy"}`)))
	env = readEnvelope(t, conn)
	assert.Equal(t, domain.ChannelTrades, env.Channel)
	assert.JSONEq(t, `{"event":"trade_buy"}`, string(env.Payload))
}

func TestClientSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{domain.ChannelTrades: true}}
	assert.True(t, c.subscribed(domain.ChannelTrades))
	assert.False(t, c.subscribed("other"))
}
