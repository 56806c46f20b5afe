package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MaxGoetzmann/jalshi/internal/metrics"
)

// bookTickerEvent is Binance's single-stream best bid/ask update.
type bookTickerEvent struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	AskPrice string `json:"a"`
}

// Run streams bookTicker updates until the context is canceled, reconnecting
// with multiplicative backoff capped at thirty seconds.
func (f *SpotFeed) Run(ctx context.Context) error {
	if f.symbol == "" {
		return fmt.Errorf("spot feed requires a symbol")
	}

	url := fmt.Sprintf("%s/%s@bookTicker", f.streamURL, strings.ToLower(f.symbol))
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consume(ctx, url); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.FeedReconnectsTotal.WithLabelValues("spot").Inc()
			f.log.Warn().Err(err).Msg("spot feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *SpotFeed) consume(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("symbol", f.Symbol()).Msg("connected spot feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("spot feed ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev bookTickerEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode book ticker")
			continue
		}
		bid, err := strconv.ParseFloat(ev.BidPrice, 64)
		if err != nil {
			f.log.Warn().Err(err).Msg("invalid bid from spot stream")
			continue
		}
		ask, err := strconv.ParseFloat(ev.AskPrice, 64)
		if err != nil {
			f.log.Warn().Err(err).Msg("invalid ask from spot stream")
			continue
		}
		if bid <= 0 || ask <= 0 {
			continue
		}
		f.Record((bid + ask) / 2)
	}
}
