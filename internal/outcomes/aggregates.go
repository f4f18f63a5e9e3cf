package outcomes

import (
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/strikewindow/internal/domain"
)

// RecentReader is the read side Aggregator needs, satisfied by
// internal/database.OutcomeStore.
type RecentReader interface {
	ListRecent(limit int) ([]domain.SignalOutcome, error)
}

// Summary is the shape spec.md §4.I's aggregate query returns: counts plus
// mean confidence and total P&L over the queried window.
type Summary struct {
	Total         int
	WithOutcome   int
	Pending       int
	Wins          int
	TotalPnL      float64
	AvgConfidence float64
}

// Bucket is one key's slice of a bucketed Summary breakdown.
type Bucket struct {
	Key     string
	Summary Summary
}

// Aggregator answers aggregate and bucketed-aggregate queries over recent
// signals and their outcomes, for the diagnostics surface (spec.md §4.I).
// Variance is exposed alongside the mean so a caller can flag buckets whose
// P&L is too noisy to draw a conclusion from.
type Aggregator struct {
	store RecentReader
}

// NewAggregator returns an Aggregator backed by store.
func NewAggregator(store RecentReader) *Aggregator {
	return &Aggregator{store: store}
}

// clampLimit enforces spec.md §4.I's [1, 1000] bound on query size.
func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// Summarize returns the aggregate shape over the most recent limit signals.
func (a *Aggregator) Summarize(limit int) (Summary, error) {
	rows, err := a.store.ListRecent(clampLimit(limit))
	if err != nil {
		return Summary{}, err
	}
	return summarize(rows), nil
}

// BucketKeyFunc assigns a signal+outcome row to a bucket label.
type BucketKeyFunc func(domain.SignalOutcome) string

// SummarizeBucketed groups the most recent limit signals by keyFn and
// summarizes each group independently.
func (a *Aggregator) SummarizeBucketed(limit int, keyFn BucketKeyFunc) ([]Bucket, error) {
	rows, err := a.store.ListRecent(clampLimit(limit))
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]domain.SignalOutcome)
	var order []string
	for _, row := range rows {
		key := keyFn(row)
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], row)
	}

	buckets := make([]Bucket, 0, len(order))
	for _, key := range order {
		buckets = append(buckets, Bucket{Key: key, Summary: summarize(grouped[key])})
	}
	return buckets, nil
}

// ByTimeRemaining buckets by the signal's time-to-expiry at generation,
// in 60-second-wide bands (spec.md §4.I: "by time-to-expiry").
func ByTimeRemaining(row domain.SignalOutcome) string {
	return bandLabel(row.Inputs.TimeRemainingMs/1000, 60)
}

// ByOracleStaleness buckets by the oracle's staleness at signal time, in
// 5-second-wide bands (spec.md §4.I: "by staleness").
func ByOracleStaleness(row domain.SignalOutcome) string {
	return bandLabel(row.Inputs.OracleStalenessMs/1000, 5)
}

// ByConfidence buckets by confidence, in tenths (spec.md §4.I: "by confidence").
func ByConfidence(row domain.SignalOutcome) string {
	tenth := int(row.Confidence * 10)
	return bandLabel(int64(tenth), 1)
}

// BySymbol buckets by the traded symbol (spec.md §4.I: "by symbol").
func BySymbol(row domain.SignalOutcome) string {
	return row.Symbol
}

func bandLabel(value int64, width int64) string {
	if width < 1 {
		width = 1
	}
	band := (value / width) * width
	return decimalToLabel(band, width)
}

func decimalToLabel(band, width int64) string {
	hi := band + width
	return strconv.FormatInt(band, 10) + "-" + strconv.FormatInt(hi, 10)
}

// summarize computes a Summary from a slice of rows. Mean confidence uses
// gonum.org/v1/gonum/stat with every row weighted equally (nil weights),
// matching the teacher's pkg/formulas helpers; total P&L is a plain sum
// over the rows that have an outcome.
func summarize(rows []domain.SignalOutcome) Summary {
	s := Summary{Total: len(rows)}
	if len(rows) == 0 {
		return s
	}

	confidences := make([]float64, 0, len(rows))
	var pnls []float64

	for _, row := range rows {
		confidences = append(confidences, row.Confidence)
		if !row.HasOutcome {
			s.Pending++
			continue
		}
		s.WithOutcome++
		if row.SignalCorrect == 1 {
			s.Wins++
		}
		pnl, _ := row.PnL.Float64()
		pnls = append(pnls, pnl)
		s.TotalPnL += pnl
	}

	s.AvgConfidence = stat.Mean(confidences, nil)
	return s
}

// PnLVariance reports the sample variance and standard deviation of P&L
// across rows that have settled, for flagging noisy buckets.
func PnLVariance(rows []domain.SignalOutcome) (variance, stdDev float64) {
	var pnls []float64
	for _, row := range rows {
		if !row.HasOutcome {
			continue
		}
		pnl, _ := row.PnL.Float64()
		pnls = append(pnls, pnl)
	}
	if len(pnls) < 2 {
		return 0, 0
	}
	variance = stat.Variance(pnls, nil)
	stdDev = stat.StdDev(pnls, nil)
	return variance, stdDev
}
