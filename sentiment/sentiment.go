// Package sentiment provides sentiment scores to the replay engine as
// already-resolved values. Fetching and aggregating raw sentiment happens
// elsewhere; these sources only answer "what was known at time t".
package sentiment

import (
	"errors"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// ErrUnavailable is returned when no score is known for the instrument at
// the requested time.
var ErrUnavailable = errors.New("sentiment unavailable")

// Source answers with the latest score observable at asOf. A returned
// Sentiment.Time must never be after asOf.
type Source interface {
	ScoreFor(instrument string, asOf time.Time) (market.Sentiment, error)
}

// Static always reports the same score, timestamped at asOf.
type Static struct {
	Score float64
	Stale bool
}

func (s Static) ScoreFor(_ string, asOf time.Time) (market.Sentiment, error) {
	return market.Sentiment{Score: s.Score, Time: asOf, Stale: s.Stale}, nil
}

// Func adapts a function to Source.
type Func func(instrument string, asOf time.Time) (market.Sentiment, error)

func (f Func) ScoreFor(instrument string, asOf time.Time) (market.Sentiment, error) {
	return f(instrument, asOf)
}
