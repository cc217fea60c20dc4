// Package quotesfeed maintains a live, mutex-guarded price cache fed by
// a websocket connection, generalizing the teacher's
// internal/broker/zerodha ticker_manager/websocket pattern (a
// broker-specific candle cache keyed by symbol) away from any single
// broker: this cache is keyed by ticker and updated by whatever JSON
// tick messages the configured feed sends, using gorilla/websocket
// directly instead of a broker SDK's ticker client.
package quotesfeed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SeanStafford/ENTROPY/internal/obslog"
)

// Tick is one price update as received over the wire.
type Tick struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	Timestamp time.Time `json:"timestamp"`
}

type cachedQuote struct {
	price     float64
	changePct float64
	asOf      time.Time
}

// Feed is a websocket-backed live price cache. Zero value is not usable;
// construct with New.
type Feed struct {
	url string

	mu     sync.RWMutex
	quotes map[string]cachedQuote

	conn      *websocket.Conn
	subscribe []string
}

func New(url string) *Feed {
	return &Feed{url: url, quotes: make(map[string]cachedQuote)}
}

// Start dials the feed and subscribes to tickers, then processes
// incoming ticks in a background goroutine until ctx is canceled,
// mirroring the teacher's tickerManager.Start goroutine-serve pattern.
func (f *Feed) Start(ctx context.Context, tickers []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		obslog.ErrorWithErr(ctx, "quotesfeed: dial failed", err, "url", f.url)
		return err
	}
	f.conn = conn
	f.subscribe = tickers

	if err := conn.WriteJSON(map[string]any{"action": "subscribe", "tickers": tickers}); err != nil {
		obslog.ErrorWithErr(ctx, "quotesfeed: subscribe failed", err)
		return err
	}

	go f.readLoop(ctx)
	go func() {
		<-ctx.Done()
		f.Stop()
	}()
	return nil
}

// Stop closes the underlying websocket connection.
func (f *Feed) Stop() {
	if f.conn != nil {
		_ = f.conn.Close()
	}
}

func (f *Feed) readLoop(ctx context.Context) {
	for {
		var tick Tick
		if err := f.conn.ReadJSON(&tick); err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				obslog.Warn(ctx, "quotesfeed: read failed, closing", "error", err.Error())
				return
			}
		}
		f.mu.Lock()
		f.quotes[tick.Ticker] = cachedQuote{price: tick.Price, changePct: tick.ChangePct, asOf: tick.Timestamp}
		f.mu.Unlock()
	}
}

// Latest returns the most recently cached quote for ticker.
func (f *Feed) Latest(ticker string) (price, changePct float64, asOf time.Time, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, exists := f.quotes[ticker]
	if !exists {
		return 0, 0, time.Time{}, false
	}
	return q.price, q.changePct, q.asOf, true
}

// Ingest lets a caller feed a tick (e.g. from a polled REST source)
// through the same cache the websocket path uses.
func (f *Feed) Ingest(raw []byte) error {
	var tick Tick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return err
	}
	f.mu.Lock()
	f.quotes[tick.Ticker] = cachedQuote{price: tick.Price, changePct: tick.ChangePct, asOf: tick.Timestamp}
	f.mu.Unlock()
	return nil
}
