// Package fees holds the pure commission math applied when a case reaches
// the payment stages. No I/O, deterministic.
package fees

import "math"

// Default fractions applied when a case carries no fee configuration in its
// metadata: a 30% client fee, a 30% platform cut, 20% tax.
const (
	DefaultClientFeeFraction   = 0.30
	DefaultPlatformFeeFraction = 0.30
	DefaultTaxRate             = 0.20
)

// Cascade is the result of the waterfall commission computation. Every
// figure is rounded to 2 decimal places, half away from zero.
type Cascade struct {
	StageFee         float64
	PlatformFeeNet   float64
	Tax              float64
	PlatformFeeGross float64
}

// NormalizePercentage coerces a loosely-typed rate into a fraction in [0,1].
// Absent (nil) or non-numeric values yield fallback. Numeric values greater
// than 1 are read as percentages out of 100.
func NormalizePercentage(raw any, fallback float64) float64 {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	default:
		return fallback
	}
	if n > 1 {
		return n / 100
	}
	return n
}

// ComputeCascade runs the waterfall: the stage fee is a fraction of the base
// amount, the platform's net cut is a fraction of that fee, tax applies to
// the net cut, and the gross cut is net plus tax.
func ComputeCascade(baseAmount, clientFeeFraction, platformFeeFraction, taxRate float64) Cascade {
	stageFee := round2(baseAmount * clientFeeFraction)
	platformNet := round2(stageFee * platformFeeFraction)
	tax := round2(platformNet * taxRate)
	return Cascade{
		StageFee:         stageFee,
		PlatformFeeNet:   platformNet,
		Tax:              tax,
		PlatformFeeGross: round2(platformNet + tax),
	}
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
