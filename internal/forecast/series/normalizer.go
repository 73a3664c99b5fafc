// Package series turns raw per-SKU observations into a uniform-frequency
// series with gaps filled and flagged.
package series

import (
	"fmt"
	"sort"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

const (
	minObservations = 2
	// maxGapDisagreement is the share of gaps allowed to differ from the
	// modal gap before detection gives up.
	maxGapDisagreement = 0.40
)

// Options configures normalization. An empty Frequency means detect.
type Options struct {
	Frequency domain.Frequency
	FillMode  domain.FillMode
}

// Normalize sorts, aggregates and gap-fills observations for one SKU.
func Normalize(uniqueID string, obs []domain.Observation, opts Options) (*domain.NormalizedSeries, error) {
	if len(obs) < minObservations {
		return nil, &domain.InsufficientHistoryError{Need: minObservations, Got: len(obs)}
	}

	daily := aggregateByDay(obs)

	freq := opts.Frequency
	if freq == "" {
		dates := make([]domain.Date, len(daily))
		for i, d := range daily {
			dates[i] = d.date
		}
		detected, err := DetectFrequency(dates)
		if err != nil {
			return nil, err
		}
		freq = detected
	}
	if !freq.Supported() {
		return nil, fmt.Errorf("%w: %s is not a supported forecast grid", domain.ErrFrequencyAmbiguous, freq)
	}

	buckets := bucketize(daily, freq)
	if len(buckets) < minObservations {
		return nil, &domain.InsufficientHistoryError{Need: minObservations, Got: len(buckets)}
	}

	fill := opts.FillMode
	if fill == "" {
		fill = domain.FillZero
	}

	points, observed := fillGrid(daily[0].date, buckets, freq, fill)

	return &domain.NormalizedSeries{
		UniqueID:    uniqueID,
		Points:      points,
		Frequency:   freq,
		CoveragePct: float64(observed) / float64(len(points)),
	}, nil
}

type dayValue struct {
	date  domain.Date
	value float64
}

// aggregateByDay sums duplicate calendar days and sorts ascending.
func aggregateByDay(obs []domain.Observation) []dayValue {
	sums := make(map[domain.Date]float64, len(obs))
	for _, o := range obs {
		sums[domain.NewDate(o.Timestamp.Time)] += o.Value
	}

	out := make([]dayValue, 0, len(sums))
	for d, v := range sums {
		out = append(out, dayValue{date: d, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date.Time) })
	return out
}

// DetectFrequency infers the grid from the modal gap between sorted,
// distinct dates.
func DetectFrequency(dates []domain.Date) (domain.Frequency, error) {
	if len(dates) < minObservations {
		return "", &domain.InsufficientHistoryError{Need: minObservations, Got: len(dates)}
	}

	counts := map[int]int{}
	gaps := make([]int, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		g := dates[i-1].DaysUntil(dates[i])
		if g <= 0 {
			continue
		}
		gaps = append(gaps, g)
		counts[g]++
	}
	if len(gaps) == 0 {
		return "", &domain.InsufficientHistoryError{Need: minObservations, Got: 1}
	}

	mode, modeCount := 0, -1
	for g, c := range counts {
		if c > modeCount || (c == modeCount && g < mode) {
			mode, modeCount = g, c
		}
	}

	freq := classifyGap(mode)
	agreeing := 0
	for _, g := range gaps {
		if classifyGap(g) == freq && freq != "" {
			agreeing++
		} else if g == mode {
			agreeing++
		}
	}

	disagreement := 1 - float64(agreeing)/float64(len(gaps))
	if disagreement > maxGapDisagreement {
		return "", fmt.Errorf("%w: modal gap of %d days covers only %.0f%% of gaps; supply an explicit frequency",
			domain.ErrFrequencyAmbiguous, mode, (1-disagreement)*100)
	}

	switch freq {
	case domain.FrequencyDaily, domain.FrequencyWeekly:
		return freq, nil
	case domain.FrequencyMonthly:
		return "", fmt.Errorf("%w: data looks monthly (modal gap %d days); only daily and weekly are supported",
			domain.ErrFrequencyAmbiguous, mode)
	default:
		return "", fmt.Errorf("%w: modal gap of %d days is neither daily nor weekly; supply an explicit frequency",
			domain.ErrFrequencyAmbiguous, mode)
	}
}

func classifyGap(days int) domain.Frequency {
	switch {
	case days == 1:
		return domain.FrequencyDaily
	case days >= 6 && days <= 8:
		return domain.FrequencyWeekly
	case days >= 28 && days <= 31:
		return domain.FrequencyMonthly
	default:
		return ""
	}
}

type bucket struct {
	index int
	value float64
}

// bucketize maps days onto period indexes relative to the first day.
func bucketize(daily []dayValue, freq domain.Frequency) []bucket {
	anchor := daily[0].date
	step := freq.PeriodDays()

	sums := map[int]float64{}
	order := []int{}
	for _, d := range daily {
		idx := anchor.DaysUntil(d.date) / step
		if _, ok := sums[idx]; !ok {
			order = append(order, idx)
		}
		sums[idx] += d.value
	}

	sort.Ints(order)
	out := make([]bucket, len(order))
	for i, idx := range order {
		out[i] = bucket{index: idx, value: sums[idx]}
	}
	return out
}

// fillGrid expands buckets into a contiguous grid starting at anchor and
// reports how many periods were observed.
func fillGrid(anchor domain.Date, buckets []bucket, freq domain.Frequency, fill domain.FillMode) ([]domain.SeriesPoint, int) {
	first := buckets[0].index
	last := buckets[len(buckets)-1].index
	step := freq.PeriodDays()

	points := make([]domain.SeriesPoint, last-first+1)
	present := make([]bool, len(points))
	for i := range points {
		points[i].Timestamp = anchor.AddDays((first + i) * step)
	}
	for _, b := range buckets {
		pos := b.index - first
		points[pos].Value = b.value
		present[pos] = true
	}

	prev := -1
	for i := range points {
		if !present[i] {
			points[i].IsInterpolated = true
			continue
		}
		if fill == domain.FillInterpolate && prev >= 0 && i-prev > 1 {
			interpolate(points, prev, i)
		}
		prev = i
	}

	return points, len(buckets)
}

func interpolate(points []domain.SeriesPoint, from, to int) {
	span := float64(to - from)
	start := points[from].Value
	end := points[to].Value
	for k := from + 1; k < to; k++ {
		frac := float64(k-from) / span
		points[k].Value = start + (end-start)*frac
	}
}
