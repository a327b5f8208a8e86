package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

func TestCSVBars_ReadsAndFilters(t *testing.T) {
	t.Parallel()

	data := strings.Join([]string{
		"time,instrument,open,high,low,close,volume",
		"2024-01-01T00:00:00Z,BTCUSDT,100,101,99,100.5,12",
		"2024-01-01T01:00:00Z,BTCUSDT,100.5,102,100,101.5,",
		"",
		"2024-01-01T02:00:00Z,ETHUSDT,10,11,9",
		"1704074400000,BTCUSDT,101.5,103,101,102,3",
	}, "\n")

	from := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	src := NewCSV(strings.NewReader(data), from, time.Time{})
	bars, err := ReadAll(src)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, from, bars[0].Time)
	assert.Zero(t, bars[0].Volume)
	assert.InDelta(t, 102.0, bars[0].High, 1e-12)

	assert.Equal(t, time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), bars[1].Time)
	assert.InDelta(t, 3.0, bars[1].Volume, 1e-12)
	assert.NoError(t, src.Close())
}

func TestCSVBars_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		row  string
	}{
		{"bad time", "yesterday,BTCUSDT,1,1,1,1"},
		{"bad number", "2024-01-01T00:00:00Z,BTCUSDT,1,x,1,1"},
		{"inverted range", "2024-01-01T00:00:00Z,BTCUSDT,1,1,2,1"},
		{"nan price", "2024-01-01T00:00:00Z,BTCUSDT,1,2,0.5,NaN"},
		{"infinite price", "2024-01-01T00:00:00Z,BTCUSDT,1,+Inf,0.5,1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := NewCSV(strings.NewReader(tt.row), time.Time{}, time.Time{}).Next()
			assert.Error(t, err)
		})
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	t.Parallel()
	bars := []market.Bar{
		{Instrument: "BTCUSDT", Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 7},
	}
	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, bars))

	got, err := ReadAll(NewCSV(strings.NewReader(sb.String()), time.Time{}, time.Time{}))
	require.NoError(t, err)
	assert.Equal(t, bars, got)
}

func TestSortBars(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []market.Bar{
		{Instrument: "ETH", Time: t0.Add(time.Hour)},
		{Instrument: "ETH", Time: t0},
		{Instrument: "BTC", Time: t0.Add(time.Hour)},
	}
	SortBars(bars)
	assert.Equal(t, "ETH", bars[0].Instrument)
	assert.Equal(t, "BTC", bars[1].Instrument)
	assert.Equal(t, "ETH", bars[2].Instrument)
}

func TestBinance_ForwardsClosedKlines(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream" || r.URL.Query().Get("streams") != "btcusdt@kline_1h" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msgs := []string{
			`{"stream":"btcusdt@kline_1h","data":{"s":"BTCUSDT","k":{"t":1704067200000,"o":"100","h":"101","l":"99","c":"100.5","v":"5","x":false}}}`,
			`not json`,
			`{"stream":"btcusdt@kline_1h","data":{"s":"BTCUSDT","k":{"t":1704067200000,"o":"100","h":"102","l":"99","c":"101","v":"9","x":true}}}`,
		}
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	f := NewBinance([]string{"BTCUSDT"}, "1h", zerolog.Nop())
	f.URL = "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan market.Bar, 1)
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, out) }()

	select {
	case b := <-out:
		assert.Equal(t, "BTCUSDT", b.Instrument)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), b.Time)
		assert.InDelta(t, 101.0, b.Close, 1e-12)
		assert.InDelta(t, 9.0, b.Volume, 1e-12)
	case <-ctx.Done():
		t.Fatal("no bar received")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestBinance_RequiresSymbols(t *testing.T) {
	t.Parallel()
	err := NewBinance(nil, "1h", zerolog.Nop()).Run(context.Background(), make(chan market.Bar))
	assert.Error(t, err)
}
