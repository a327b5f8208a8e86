package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

const DefaultBinanceURL = "wss://stream.binance.com:9443"

// Binance streams closed klines over a websocket. Partial (still forming)
// klines are dropped so only final bars reach the engine.
type Binance struct {
	URL      string
	Symbols  []string
	Interval string

	// Reconnect backoff bounds.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	log zerolog.Logger
}

func NewBinance(symbols []string, interval string, log zerolog.Logger) *Binance {
	return &Binance{
		URL:        DefaultBinanceURL,
		Symbols:    symbols,
		Interval:   interval,
		MinBackoff: time.Second,
		MaxBackoff: 30 * time.Second,
		log:        log.With().Str("component", "feed").Logger(),
	}
}

type klineEnvelope struct {
	Stream string     `json:"stream"`
	Data   klineEvent `json:"data"`
}

type klineEvent struct {
	Symbol string `json:"s"`
	Kline  kline  `json:"k"`
}

type kline struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

func (f *Binance) streamURL() string {
	streams := make([]string, len(f.Symbols))
	for i, sym := range f.Symbols {
		streams[i] = strings.ToLower(sym) + "@kline_" + f.Interval
	}
	return fmt.Sprintf("%s/stream?streams=%s", strings.TrimRight(f.URL, "/"), strings.Join(streams, "/"))
}

// Run connects and forwards closed bars to out until ctx is done,
// reconnecting with backoff on errors.
func (f *Binance) Run(ctx context.Context, out chan<- market.Bar) error {
	if len(f.Symbols) == 0 {
		return fmt.Errorf("binance feed requires at least one symbol")
	}
	if f.Interval == "" {
		return fmt.Errorf("binance feed requires an interval")
	}

	url := f.streamURL()
	backoff := f.MinBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consume(ctx, url, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Dur("backoff", backoff).Msg("kline feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if f.MaxBackoff > 0 {
				backoff = time.Duration(math.Min(float64(f.MaxBackoff), float64(backoff)*1.8))
			}
			continue
		}
		return nil
	}
}

func (f *Binance) consume(ctx context.Context, url string, out chan<- market.Bar) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Strs("symbols", f.Symbols).Str("interval", f.Interval).Msg("connected kline feed")

	// Unblock ReadMessage when the caller cancels.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadLimit(1 << 20)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		bar, ok, err := decodeKline(message)
		if err != nil {
			f.log.Warn().Err(err).Msg("failed to decode kline message")
			continue
		}
		if !ok {
			continue
		}

		select {
		case out <- bar:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func decodeKline(message []byte) (market.Bar, bool, error) {
	var env klineEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return market.Bar{}, false, err
	}
	k := env.Data.Kline
	if !k.Closed {
		return market.Bar{}, false, nil
	}

	var v [5]float64
	for i, s := range [5]string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("kline %s: bad number %q: %w", env.Data.Symbol, s, err)
		}
		v[i] = x
	}

	bar := market.Bar{
		Instrument: strings.ToUpper(env.Data.Symbol),
		Time:       time.UnixMilli(k.OpenTime).UTC(),
		Open:       v[0],
		High:       v[1],
		Low:        v[2],
		Close:      v[3],
		Volume:     v[4],
	}
	return bar, true, bar.Validate()
}
