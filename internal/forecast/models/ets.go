package models

import (
	"context"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

// AutoETS fits additive-error exponential smoothing candidates (simple,
// Holt, additive Holt-Winters) and keeps the one with the lowest AICc.
type AutoETS struct {
	// Period enables the seasonal candidate when >= 2 and the series holds
	// at least two full cycles.
	Period int
}

func (AutoETS) Kind() domain.ModelKind { return domain.ModelAutoETS }

func (m AutoETS) Fit(ctx context.Context, values []float64) (Fitted, error) {
	specs := []etsSpec{{}, {trend: true}}
	if m.Period >= 2 && len(values) >= 2*m.Period {
		specs = append(specs, etsSpec{trend: true, seasonal: true, period: m.Period})
	}

	var best *etsFit
	bestScore := math.Inf(1)
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fit, score, ok := spec.fit(values)
		if !ok {
			continue
		}
		if score < bestScore {
			best, bestScore = fit, score
		}
	}
	if best == nil {
		return nil, domain.NewModelFitError(m.Kind(), "no exponential smoothing candidate could be fit to %d periods", len(values))
	}
	return best, nil
}

type etsSpec struct {
	trend    bool
	seasonal bool
	period   int
}

// Name follows the ETS(error, trend, season) notation.
func (s etsSpec) Name() string {
	switch {
	case s.seasonal:
		return "ETS(A,A,A)"
	case s.trend:
		return "ETS(A,A,N)"
	default:
		return "ETS(A,N,N)"
	}
}

// paramCount includes smoothing parameters and initial states.
func (s etsSpec) paramCount() int {
	k := 2
	if s.trend {
		k += 2
	}
	if s.seasonal {
		k += 1 + s.period
	}
	return k
}

func (s etsSpec) minLength() int {
	switch {
	case s.seasonal:
		return 2 * s.period
	case s.trend:
		return 4
	default:
		return 3
	}
}

type etsParams struct {
	alpha, beta, gamma float64
}

// decode maps unconstrained optimizer coordinates onto the admissible
// region 0 < beta < alpha and 0 < gamma < 1-alpha.
func (s etsSpec) decode(x []float64) etsParams {
	p := etsParams{alpha: logistic(x[0])}
	if s.trend {
		p.beta = p.alpha * logistic(x[1])
	}
	if s.seasonal {
		p.gamma = (1 - p.alpha) * logistic(x[2])
	}
	return p
}

type etsState struct {
	level  float64
	slope  float64
	season []float64
}

func (s etsSpec) initial(values []float64) etsState {
	st := etsState{level: values[0]}
	if s.trend {
		st.slope = values[1] - values[0]
	}
	if s.seasonal {
		m := s.period
		first := stat.Mean(values[:m], nil)
		second := stat.Mean(values[m:2*m], nil)
		st.level = first
		st.slope = (second - first) / float64(m)
		st.season = make([]float64, m)
		for i := 0; i < m; i++ {
			st.season[i] = values[i] - first
		}
	}
	return st
}

// run applies the error-correction recursions and returns the final state
// with the one-step residuals.
func (s etsSpec) run(values []float64, p etsParams) (etsState, []float64) {
	st := s.initial(values)
	res := make([]float64, len(values))
	for t, y := range values {
		fitted := st.level + st.slope
		idx := 0
		if s.seasonal {
			idx = t % s.period
			fitted += st.season[idx]
		}
		e := y - fitted
		res[t] = e
		st.level = st.level + st.slope + p.alpha*e
		if s.trend {
			st.slope += p.beta * e
		}
		if s.seasonal {
			st.season[idx] += p.gamma * e
		}
	}
	return st, res
}

func (s etsSpec) fit(values []float64) (*etsFit, float64, bool) {
	n := len(values)
	if n < s.minLength() || n <= s.paramCount()+1 {
		return nil, 0, false
	}

	dims := 1
	if s.trend {
		dims++
	}
	if s.seasonal {
		dims++
	}
	x0 := make([]float64, dims)
	x0[0] = logit(0.3)
	for i := 1; i < dims; i++ {
		x0[i] = logit(0.1)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			_, res := s.run(values, s.decode(x))
			v := sse(res)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return math.MaxFloat64
			}
			return v
		},
	}
	settings := &optimize.Settings{MajorIterations: 400, FuncEvaluations: 4000}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	x := x0
	if result != nil && len(result.X) == dims {
		x = result.X
	} else if err != nil {
		return nil, 0, false
	}

	params := s.decode(x)
	state, res := s.run(values, params)
	sumSq := sse(res)
	if math.IsNaN(sumSq) || math.IsInf(sumSq, 0) {
		return nil, 0, false
	}

	fit := &etsFit{
		spec:      s,
		params:    params,
		state:     state,
		n:         n,
		residuals: res,
		sigma:     math.Sqrt(sumSq / float64(n)),
	}
	return fit, aicc(sumSq, n, s.paramCount()), true
}

type etsFit struct {
	spec      etsSpec
	params    etsParams
	state     etsState
	n         int
	residuals []float64
	sigma     float64
}

func (f *etsFit) Kind() domain.ModelKind { return domain.ModelAutoETS }
func (f *etsFit) Residuals() []float64   { return f.residuals }

// Method reports which candidate was selected.
var _ MethodNamer = (*etsFit)(nil)

func (f *etsFit) Method() string { return f.spec.Name() }

func (f *etsFit) Predict(horizon int, confidence float64) ([]Prediction, error) {
	if err := checkHorizon(f.Kind(), horizon); err != nil {
		return nil, err
	}
	a, b, g := f.params.alpha, f.params.beta, f.params.gamma
	means := make([]float64, horizon)
	sds := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		fh := float64(h)
		mean := f.state.level + fh*f.state.slope
		variance := 1 + (fh-1)*(a*a+a*b*fh+b*b*fh*(2*fh-1)/6)
		if f.spec.seasonal {
			m := f.spec.period
			mean += f.state.season[(f.n+h-1)%m]
			k := float64((h - 1) / m)
			variance += k * g * (2*a + g + b*float64(m)*(k+1))
		}
		means[h-1] = mean
		sds[h-1] = f.sigma * math.Sqrt(variance)
	}
	return intervals(means, sds, confidence), nil
}
