package feed

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"crypto-scenario-engine/internal/forwardtest"
)

// WSConfig holds the live trade-stream settings.
type WSConfig struct {
	BaseURL        string        `json:"base_url"` // defaults to the public Binance stream host
	Symbol         string        `json:"symbol"`
	ReconnectDelay time.Duration `json:"reconnect_delay"`
}

// WSSource streams trade prices over a websocket, reconnecting until its
// context is cancelled.
type WSSource struct {
	cfg WSConfig
	log zerolog.Logger
}

var _ Source = (*WSSource)(nil)

// NewWSSource creates a live trade-stream source for one symbol.
func NewWSSource(cfg WSConfig, log zerolog.Logger) *WSSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://stream.binance.com:9443"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &WSSource{
		cfg: cfg,
		log: log.With().Str("component", "feed").Str("symbol", cfg.Symbol).Logger(),
	}
}

// tradeEvent is the exchange's trade-stream payload.
type tradeEvent struct {
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

// Ticks connects and emits one tick per trade. The channel closes when the
// context is cancelled.
func (w *WSSource) Ticks(ctx context.Context) (<-chan forwardtest.Tick, error) {
	out := make(chan forwardtest.Tick)
	url := w.cfg.BaseURL + "/ws/" + strings.ToLower(w.cfg.Symbol) + "@trade"

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				w.log.Warn().Err(err).Msg("stream connect failed, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.cfg.ReconnectDelay):
				}
				continue
			}
			w.log.Info().Msg("trade stream connected")

			w.readLoop(ctx, conn, out)
			conn.Close()

			if ctx.Err() != nil {
				return
			}
			w.log.Warn().Msg("trade stream lost, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ReconnectDelay):
			}
		}
	}()
	return out, nil
}

func (w *WSSource) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- forwardtest.Tick) {
	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if ctx.Err() == nil {
				w.log.Warn().Err(err).Msg("stream read failed")
			}
			return
		}

		var ev tradeEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		price, err := strconv.ParseFloat(ev.Price, 64)
		if err != nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case out <- forwardtest.Tick{Price: price, At: time.UnixMilli(ev.TradeTime).UTC()}:
		}
	}
}
