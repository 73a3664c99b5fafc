package models

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ZScore is the two-sided standard normal quantile for a confidence level.
func ZScore(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		return 0
	}
	return distuv.UnitNormal.Quantile(0.5 + confidence/2)
}

// residualSigma is the root mean square of the finite residuals.
func residualSigma(residuals []float64) float64 {
	var sum float64
	var n int
	for _, r := range residuals {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		sum += r * r
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// intervals combines point means with per-step standard deviations.
func intervals(means, sds []float64, confidence float64) []Prediction {
	z := ZScore(confidence)
	out := make([]Prediction, len(means))
	for i, m := range means {
		half := z * sds[i]
		out[i] = Prediction{Mean: m, Lower: m - half, Upper: m + half}
	}
	return out
}

func sse(residuals []float64) float64 {
	var s float64
	for _, r := range residuals {
		s += r * r
	}
	return s
}

// aicc is the corrected Akaike criterion for a Gaussian likelihood
// estimated from the sum of squared errors. Returns +Inf when undefined.
func aicc(sumSq float64, n, k int) float64 {
	if n-k-1 <= 0 {
		return math.Inf(1)
	}
	floor := 1e-12 * float64(n)
	if sumSq < floor {
		sumSq = floor
	}
	aic := float64(n)*math.Log(sumSq/float64(n)) + 2*float64(k)
	return aic + 2*float64(k)*float64(k+1)/float64(n-k-1)
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
