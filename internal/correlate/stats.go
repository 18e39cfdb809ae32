package correlate

import "math"

// pearson computes the Pearson correlation coefficient of two equal-length
// samples. Returns 0 when either sample has no variance.
func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}

	meanA, meanB := mean(a), mean(b)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

// olsFit is an ordinary-least-squares line fit y = intercept + slope*x.
type olsFit struct {
	slope     float64
	intercept float64
	r2        float64
}

// fitLine fits xs (hours) against ys. R² is 1 - SSres/SStot; a flat series
// (zero variance) fits perfectly with slope 0.
func fitLine(xs, ys []float64) olsFit {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return olsFit{}
	}

	meanX, meanY := mean(xs), mean(ys)
	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}
	if sxx == 0 {
		return olsFit{intercept: meanY}
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		pred := intercept + slope*xs[i]
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}
	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	if r2 < 0 {
		r2 = 0
	}
	return olsFit{slope: slope, intercept: intercept, r2: r2}
}
