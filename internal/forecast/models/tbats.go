package models

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

const maxHarmonics = 3

// TBATS is a trigonometric multi-seasonal regression: linear trend plus
// Fourier terms for every seasonal period, fit by least squares.
type TBATS struct {
	Periods []int
}

func (TBATS) Kind() domain.ModelKind { return domain.ModelTBATS }

// usablePeriods drops duplicates and periods shorter than 2.
func usablePeriods(periods []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, p := range periods {
		if p < 2 || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func harmonics(period int) int {
	k := period / 2
	if k > maxHarmonics {
		k = maxHarmonics
	}
	return k
}

type fourierTerm struct {
	cycles float64 // cycles per period
	sine   bool
}

// fourierTerms lists the regressors for every period, skipping sine terms
// that vanish on the integer grid and frequencies shared between periods.
func fourierTerms(periods []int) []fourierTerm {
	seen := map[int64]bool{}
	var terms []fourierTerm
	for _, p := range periods {
		for k := 1; k <= harmonics(p); k++ {
			freq := float64(k) / float64(p)
			key := int64(math.Round(freq * 1e9))
			if seen[key] {
				continue
			}
			seen[key] = true
			if 2*k != p {
				terms = append(terms, fourierTerm{cycles: freq, sine: true})
			}
			terms = append(terms, fourierTerm{cycles: freq})
		}
	}
	return terms
}

func design(t float64, terms []fourierTerm) []float64 {
	row := make([]float64, 0, 2+len(terms))
	row = append(row, 1, t)
	for _, term := range terms {
		angle := 2 * math.Pi * term.cycles * t
		if term.sine {
			row = append(row, math.Sin(angle))
		} else {
			row = append(row, math.Cos(angle))
		}
	}
	return row
}

func (m TBATS) Fit(ctx context.Context, values []float64) (Fitted, error) {
	periods := usablePeriods(m.Periods)
	if len(periods) == 0 {
		return nil, domain.NewModelFitError(m.Kind(), "no seasonal periods configured")
	}
	longest := periods[len(periods)-1]
	n := len(values)
	if n < 2*longest {
		return nil, domain.NewModelFitError(m.Kind(), "need two full cycles of %d periods, got %d", longest, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := fourierTerms(periods)
	cols := 2 + len(terms)
	if n <= cols {
		return nil, domain.NewModelFitError(m.Kind(), "%d periods cannot identify %d coefficients", n, cols)
	}

	a := mat.NewDense(n, cols, nil)
	for t := 0; t < n; t++ {
		a.SetRow(t, design(float64(t), terms))
	}
	b := mat.NewVecDense(n, append([]float64(nil), values...))

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		return nil, domain.NewModelFitError(m.Kind(), "least squares: %v", err)
	}

	var fitted mat.VecDense
	fitted.MulVec(a, &coef)
	res := make([]float64, n)
	for t := 0; t < n; t++ {
		res[t] = values[t] - fitted.AtVec(t)
	}

	c := make([]float64, cols)
	for i := range c {
		c[i] = coef.AtVec(i)
	}
	return &tbatsFit{terms: terms, coef: c, n: n, residuals: res, sigma: residualSigma(res)}, nil
}

type tbatsFit struct {
	terms     []fourierTerm
	coef      []float64
	n         int
	residuals []float64
	sigma     float64
}

func (f *tbatsFit) Kind() domain.ModelKind { return domain.ModelTBATS }
func (f *tbatsFit) Residuals() []float64   { return f.residuals }

func (f *tbatsFit) Predict(horizon int, confidence float64) ([]Prediction, error) {
	if err := checkHorizon(f.Kind(), horizon); err != nil {
		return nil, err
	}
	means := make([]float64, horizon)
	sds := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		row := design(float64(f.n-1+h), f.terms)
		var v float64
		for i, x := range row {
			v += x * f.coef[i]
		}
		means[h-1] = v
		sds[h-1] = f.sigma * math.Sqrt(1+float64(h)/float64(f.n))
	}
	return intervals(means, sds, confidence), nil
}
