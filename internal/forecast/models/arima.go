package models

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// AutoARIMA runs a stepwise search over non-seasonal ARIMA(p,d,q) orders
// fit by conditional sum of squares, ranked by AICc.
type AutoARIMA struct {
	MaxP int
	MaxQ int
}

func (AutoARIMA) Kind() domain.ModelKind { return domain.ModelAutoARIMA }

type arimaOrder struct {
	p, d, q int
}

func (o arimaOrder) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.p, o.d, o.q)
}

func (m AutoARIMA) Fit(ctx context.Context, values []float64) (Fitted, error) {
	if len(values) < 3 {
		return nil, domain.NewModelFitError(m.Kind(), "need at least 3 periods, got %d", len(values))
	}
	maxP, maxQ := m.MaxP, m.MaxQ
	if maxP <= 0 {
		maxP = 3
	}
	if maxQ <= 0 {
		maxQ = 3
	}

	d := chooseDifferencing(values)

	tried := map[arimaOrder]bool{}
	var best *arimaFit
	bestScore := math.Inf(1)

	try := func(o arimaOrder) error {
		if o.p < 0 || o.q < 0 || o.p > maxP || o.q > maxQ || tried[o] {
			return nil
		}
		tried[o] = true
		if err := ctx.Err(); err != nil {
			return err
		}
		fit, score, ok := fitARIMA(values, o)
		if ok && score < bestScore {
			best, bestScore = fit, score
		}
		return nil
	}

	for _, o := range []arimaOrder{{2, d, 2}, {0, d, 0}, {1, d, 0}, {0, d, 1}} {
		if err := try(o); err != nil {
			return nil, err
		}
	}
	if best == nil {
		return nil, domain.NewModelFitError(m.Kind(), "no ARIMA order could be fit to %d periods", len(values))
	}

	for {
		current := best.order
		for _, step := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}, {-1, -1}, {1, 1}} {
			if err := try(arimaOrder{current.p + step[0], d, current.q + step[1]}); err != nil {
				return nil, err
			}
		}
		if best.order == current {
			break
		}
	}
	return best, nil
}

// chooseDifferencing differences once when it clearly reduces variance,
// which separates trending or random-walk series from stationary noise.
func chooseDifferencing(values []float64) int {
	if len(values) < 8 {
		return 0
	}
	v0 := stat.Variance(values, nil)
	if v0 == 0 {
		return 0
	}
	v1 := stat.Variance(difference(values), nil)
	if v1 < 0.8*v0 {
		return 1
	}
	return 0
}

func difference(values []float64) []float64 {
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// cssResiduals computes ARMA innovations on the centered working series.
// Pre-sample innovations are zero and the first p periods are conditioned on.
func cssResiduals(w []float64, mu float64, phi, theta []float64) []float64 {
	p := len(phi)
	e := make([]float64, len(w))
	for t := p; t < len(w); t++ {
		pred := mu
		for i, ph := range phi {
			pred += ph * (w[t-1-i] - mu)
		}
		for j, th := range theta {
			if t-1-j >= 0 {
				pred += th * e[t-1-j]
			}
		}
		e[t] = w[t] - pred
	}
	return e[p:]
}

func coefficientsAdmissible(coef []float64) bool {
	var s float64
	for _, c := range coef {
		s += math.Abs(c)
	}
	return s < 1
}

func fitARIMA(values []float64, o arimaOrder) (*arimaFit, float64, bool) {
	w := values
	if o.d == 1 {
		w = difference(values)
	}
	k := o.p + o.q + 2
	nEff := len(w) - o.p
	if nEff <= k+1 {
		return nil, 0, false
	}

	mu := stat.Mean(w, nil)
	dims := o.p + o.q
	split := func(x []float64) ([]float64, []float64) {
		return x[:o.p], x[o.p:]
	}

	x := make([]float64, dims)
	if dims > 0 {
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				phi, theta := split(x)
				if !coefficientsAdmissible(phi) || !coefficientsAdmissible(theta) {
					return math.MaxFloat64
				}
				v := sse(cssResiduals(w, mu, phi, theta))
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return math.MaxFloat64
				}
				return v
			},
		}
		settings := &optimize.Settings{MajorIterations: 300, FuncEvaluations: 3000}
		result, err := optimize.Minimize(problem, x, settings, &optimize.NelderMead{})
		if result != nil && len(result.X) == dims {
			x = result.X
		} else if err != nil {
			return nil, 0, false
		}
	}

	phi, theta := split(append([]float64(nil), x...))
	if !coefficientsAdmissible(phi) || !coefficientsAdmissible(theta) {
		return nil, 0, false
	}
	res := cssResiduals(w, mu, phi, theta)
	sumSq := sse(res)
	if math.IsNaN(sumSq) || math.IsInf(sumSq, 0) {
		return nil, 0, false
	}

	// full innovation history, including conditioned periods as zero
	innov := make([]float64, len(w))
	copy(innov[o.p:], res)

	fit := &arimaFit{
		order:     o,
		mu:        mu,
		phi:       phi,
		theta:     theta,
		work:      append([]float64(nil), w...),
		innov:     innov,
		lastLevel: values[len(values)-1],
		residuals: res,
		sigma:     math.Sqrt(sumSq / float64(len(res))),
	}
	return fit, aicc(sumSq, len(res), k), true
}

type arimaFit struct {
	order     arimaOrder
	mu        float64
	phi       []float64
	theta     []float64
	work      []float64
	innov     []float64
	lastLevel float64
	residuals []float64
	sigma     float64
}

func (f *arimaFit) Kind() domain.ModelKind { return domain.ModelAutoARIMA }
func (f *arimaFit) Residuals() []float64   { return f.residuals }

// Method reports the selected order.
var _ MethodNamer = (*arimaFit)(nil)

func (f *arimaFit) Method() string { return f.order.String() }

func (f *arimaFit) Predict(horizon int, confidence float64) ([]Prediction, error) {
	if err := checkHorizon(f.Kind(), horizon); err != nil {
		return nil, err
	}

	n := len(f.work)
	w := make([]float64, n+horizon)
	copy(w, f.work)
	e := make([]float64, n+horizon)
	copy(e, f.innov)

	for t := n; t < n+horizon; t++ {
		pred := f.mu
		for i, ph := range f.phi {
			pred += ph * (w[t-1-i] - f.mu)
		}
		for j, th := range f.theta {
			if t-1-j >= 0 {
				pred += th * e[t-1-j]
			}
		}
		w[t] = pred
	}

	psi := f.psiWeights(horizon)
	means := make([]float64, horizon)
	sds := make([]float64, horizon)
	level := f.lastLevel
	var cum float64
	for h := 0; h < horizon; h++ {
		if f.order.d == 1 {
			level += w[n+h]
			means[h] = level
		} else {
			means[h] = w[n+h]
		}
		cum += psi[h] * psi[h]
		sds[h] = f.sigma * math.Sqrt(cum)
	}
	return intervals(means, sds, confidence), nil
}

// psiWeights returns the MA(infinity) weights of the model in levels,
// integrating once when the series was differenced.
func (f *arimaFit) psiWeights(horizon int) []float64 {
	psi := make([]float64, horizon)
	for j := 0; j < horizon; j++ {
		if j == 0 {
			psi[j] = 1
			continue
		}
		var v float64
		if j-1 < len(f.theta) {
			v = f.theta[j-1]
		}
		for i := 1; i <= len(f.phi) && i <= j; i++ {
			v += f.phi[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	if f.order.d == 1 {
		for j := 1; j < horizon; j++ {
			psi[j] += psi[j-1]
		}
	}
	return psi
}
