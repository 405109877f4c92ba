package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"RiskPulse/internal/domain/models"
	applogger "RiskPulse/pkg/logger"
)

// StreamConfig configures the Finnhub trade websocket.
type StreamConfig struct {
	APIKey string
	URL    string
	// Symbols maps catalog symbols to feed symbols, e.g. BTC -> BINANCE:BTCUSDT.
	Symbols      map[string]string
	PingInterval time.Duration
	// MaxAge is how long a last trade stays usable as a current price.
	MaxAge       time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Buffer       int
}

type lastTrade struct {
	price float64
	at    time.Time
}

// Stream keeps the last trade price per symbol from the Finnhub websocket
// and fans trades out as ticks. It reconnects with exponential backoff.
type Stream struct {
	cfg       StreamConfig
	l         *applogger.Logger
	dialer    *websocket.Dialer
	reverse   map[string]string
	ticks     chan models.Tick
	connected atomic.Bool
	dropped   atomic.Int64
	now       func() time.Time

	mu   sync.RWMutex
	last map[string]lastTrade
}

func NewStream(cfg StreamConfig, l *applogger.Logger) *Stream {
	if cfg.URL == "" {
		cfg.URL = "wss://ws.finnhub.io"
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 2 * time.Minute
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = time.Minute
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if l == nil {
		l = applogger.Nop()
	}
	reverse := make(map[string]string, len(cfg.Symbols))
	for sym, feed := range cfg.Symbols {
		reverse[feed] = sym
	}
	return &Stream{
		cfg:     cfg,
		l:       l,
		dialer:  websocket.DefaultDialer,
		reverse: reverse,
		ticks:   make(chan models.Tick, cfg.Buffer),
		now:     time.Now,
		last:    make(map[string]lastTrade),
	}
}

// Ticks delivers trades for mapped symbols. Trades are dropped when the reader falls behind.
func (s *Stream) Ticks() <-chan models.Tick { return s.ticks }

func (s *Stream) IsConnected() bool { return s.connected.Load() }

// Dropped returns the number of ticks dropped on backpressure.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }

// CurrentPrice returns the last trade price if it is fresher than MaxAge.
func (s *Stream) CurrentPrice(_ context.Context, symbol string) (float64, bool) {
	s.mu.RLock()
	lt, ok := s.last[symbol]
	s.mu.RUnlock()
	if !ok || s.now().Sub(lt.at) > s.cfg.MaxAge {
		return 0, false
	}
	return lt.price, true
}

// Run keeps a session open until ctx is done.
func (s *Stream) Run(ctx context.Context) error {
	if len(s.cfg.Symbols) == 0 {
		return errors.New("finnhub: no symbols configured")
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.ReconnectMin
	eb.MaxInterval = s.cfg.ReconnectMax
	eb.MaxElapsedTime = 0
	eb.Reset()

	for {
		err := s.session(ctx, eb.Reset)
		if ctx.Err() != nil {
			return nil
		}
		wait := eb.NextBackOff()
		s.l.Warn("finnhub session ended",
			applogger.Error(err),
			applogger.Duration("retry_in", wait),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *Stream) session(ctx context.Context, onConnected func()) error {
	u := fmt.Sprintf("%s?token=%s", s.cfg.URL, s.cfg.APIKey)
	conn, _, err := s.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	defer conn.Close()

	feeds := make([]string, 0, len(s.cfg.Symbols))
	for _, f := range s.cfg.Symbols {
		feeds = append(feeds, f)
	}
	sort.Strings(feeds)
	for _, f := range feeds {
		if err := conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": f}); err != nil {
			return fmt.Errorf("subscribe %s: %w", f, err)
		}
	}
	s.connected.Store(true)
	defer s.connected.Store(false)
	onConnected()
	s.l.Info("finnhub connected", applogger.Strings("symbols", feeds))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("finnhub read: %w", err)
		}
		s.handle(b)
	}
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

func (s *Stream) handle(b []byte) {
	var m fhMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
		return
	}
	for _, d := range m.Data {
		sym, ok := s.reverse[d.S]
		if !ok || d.P <= 0 {
			continue
		}
		at := time.UnixMilli(d.T)
		s.mu.Lock()
		if prev, seen := s.last[sym]; !seen || !at.Before(prev.at) {
			s.last[sym] = lastTrade{price: d.P, at: at}
		}
		s.mu.Unlock()

		select {
		case s.ticks <- models.Tick{Symbol: sym, T: d.T, C: d.P, V: d.V}:
		default:
			s.dropped.Add(1)
		}
	}
}
