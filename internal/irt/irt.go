// Caliper - Computerized Adaptive Testing Engine
// Copyright 2026 The Caliper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/opencaliper/caliper

// Package irt implements the 3-parameter-logistic (3PL) item response model:
// response probability, Fisher information, and a Newton-Raphson
// maximum-a-posteriori estimator of ability theta.
//
// All functions are pure and deterministic. Missing calibration parameters
// never fail a call: Probability degrades to 0.5, Information to 0, and
// NewtonUpdate ignores the affected responses.
//
// # Model
//
// P(correct | theta) = c + (1-c) * sigma(a*(theta-b)), where sigma is the
// logistic function, a is discrimination, b is difficulty, and c is the
// pseudo-guessing floor. Fisher information is (dP/dtheta)^2 / (P*(1-P)).
package irt

import "math"

// Numeric guards shared by the kernel functions.
const (
	// ThetaMin and ThetaMax bound every ability estimate.
	ThetaMin = -4.0
	ThetaMax = 4.0

	// logisticClip is the |z| beyond which the logistic saturates to 0 or 1.
	logisticClip = 20.0

	// probEps is the floor below which P or 1-P makes information unusable.
	probEps = 1e-6

	// infoEps is the floor below which total information yields SE = 1.
	infoEps = 1e-8

	// hessEps is the floor below which the Newton step is abandoned.
	hessEps = 1e-8

	// maxStep clips a single Newton step.
	maxStep = 1.0
)

// Params holds the 3PL calibration of one item. Any field may be nil;
// an item with any missing parameter carries no information.
type Params struct {
	A *float64 // discrimination, typically 0.5-2.5
	B *float64 // difficulty, typically -3..3
	C *float64 // pseudo-guessing, 0..<0.5
}

// Complete reports whether all three parameters are present.
func (p Params) Complete() bool {
	return p.A != nil && p.B != nil && p.C != nil
}

// NewParams builds a fully-populated Params. Mostly a test helper, but
// callers converting from storage rows use it too.
func NewParams(a, b, c float64) Params {
	return Params{A: &a, B: &b, C: &c}
}

// Response pairs an observed answer with the calibration of the item that
// produced it.
type Response struct {
	Correct bool
	Params  Params
}

// Estimate is the result of an ability update.
type Estimate struct {
	Theta float64
	SE    float64
}

// Config controls the Newton-Raphson estimator.
type Config struct {
	// PriorMean is the mean of the normal prior on theta. Centering the
	// prior on the pre-update estimate keeps a correct answer from
	// dragging theta below its starting point when the prior is strong.
	PriorMean float64

	// PriorVar is the variance of the N(PriorMean, PriorVar) prior on
	// theta. Ignored when MLE is true.
	PriorVar float64

	// MLE drops the prior terms, giving a maximum-likelihood estimate.
	MLE bool

	// MaxIterations bounds the Newton loop.
	MaxIterations int

	// Tolerance stops the loop once |step| falls below it.
	Tolerance float64
}

// DefaultConfig returns the standard MAP configuration: unit-variance
// normal prior centered at zero, 25 iterations, 1e-3 step tolerance.
func DefaultConfig() Config {
	return Config{
		PriorMean:     0,
		PriorVar:      1.0,
		MLE:           false,
		MaxIterations: 25,
		Tolerance:     1e-3,
	}
}

// Probability returns P(correct | theta) under the 3PL model.
// Missing parameters return 0.5. The logistic argument saturates at
// |z| > 20 to avoid overflow.
func Probability(theta float64, p Params) float64 {
	if !p.Complete() {
		return 0.5
	}

	a, b, c := *p.A, *p.B, *p.C

	z := a * (theta - b)
	var l float64
	switch {
	case z > logisticClip:
		l = 1.0
	case z < -logisticClip:
		l = 0.0
	default:
		l = 1.0 / (1.0 + math.Exp(-z))
	}

	return c + (1.0-c)*l
}

// Information returns the Fisher information of an item at theta:
// I(theta) = (dP/dtheta)^2 / (P*(1-P)), with
// dP/dtheta = (1-c)*a*L*(1-L) and L = (P-c)/(1-c).
//
// Returns 0 when any parameter is missing, when P or 1-P falls below 1e-6,
// or when 1-c falls below 1e-6.
func Information(theta float64, p Params) float64 {
	if !p.Complete() {
		return 0.0
	}

	a, c := *p.A, *p.C

	prob := Probability(theta, p)
	q := 1.0 - prob
	if prob <= probEps || q <= probEps {
		return 0.0
	}
	if (1.0 - c) <= probEps {
		return 0.0
	}

	l := (prob - c) / (1.0 - c)
	dp := (1.0 - c) * a * l * (1.0 - l)

	return (dp * dp) / (prob * q)
}

// NewtonUpdate estimates theta from theta0 and a set of responses by
// Newton-Raphson on the log-posterior (log-likelihood when cfg.MLE).
//
// Responses with incomplete parameters are ignored. Each step is clipped to
// [-1, +1] and theta is clamped to [ThetaMin, ThetaMax] after every step.
// The loop stops when |step| < cfg.Tolerance, the Hessian degenerates
// (|h| < 1e-8), or cfg.MaxIterations is reached.
//
// SE is 1/sqrt(I_total + 1/PriorVar) at the final theta, where I_total sums
// Information over the responses; if total information is at most 1e-8 the
// SE falls back to 1.0. An empty response list returns (clamped theta0, 1.0).
//
/// Numeric anomalies never fail the call: the update halts with the current
// iterate.
func NewtonUpdate(theta0 float64, responses []Response, cfg Config) Estimate {
	theta := clampTheta(theta0)

	if len(responses) == 0 {
		return Estimate{Theta: theta, SE: 1.0}
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 25
	}
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = 1e-3
	}
	usePrior := !cfg.MLE && cfg.PriorVar > 0

	for i := 0; i < maxIter; i++ {
		var g, h float64

		for _, r := range responses {
			if !r.Params.Complete() {
				continue
			}

			a, c := *r.Params.A, *r.Params.C
			prob := Probability(theta, r.Params)
			q := 1.0 - prob
			if prob <= probEps || q <= probEps {
				continue
			}
			if (1.0 - c) <= probEps {
				continue
			}

			l := (prob - c) / (1.0 - c)
			dp := (1.0 - c) * a * l * (1.0 - l)

			y := 0.0
			if r.Correct {
				y = 1.0
			}

			g += (y - prob) * (dp / (prob * q))
			h -= (dp * dp) * ((1.0 / prob) + (1.0 / q))
		}

		if usePrior {
			g -= (theta - cfg.PriorMean) / cfg.PriorVar
			h -= 1.0 / cfg.PriorVar
		}

		if math.Abs(h) < hessEps {
			break
		}

		step := g / h
		if step > maxStep {
			step = maxStep
		} else if step < -maxStep {
			step = -maxStep
		}

		theta = clampTheta(theta - step)

		if math.Abs(step) < tol {
			break
		}
	}

	return Estimate{Theta: theta, SE: standardError(theta, responses, cfg, usePrior)}
}

// standardError computes 1/sqrt(I_total [+ 1/PriorVar]) at theta,
// falling back to 1.0 when information degenerates.
func standardError(theta float64, responses []Response, cfg Config, usePrior bool) float64 {
	var info float64
	for _, r := range responses {
		info += Information(theta, r.Params)
	}
	if usePrior {
		info += 1.0 / cfg.PriorVar
	}

	if info <= infoEps {
		return 1.0
	}
	return 1.0 / math.Sqrt(info)
}

// clampTheta bounds theta to [ThetaMin, ThetaMax].
func clampTheta(theta float64) float64 {
	if theta > ThetaMax {
		return ThetaMax
	}
	if theta < ThetaMin {
		return ThetaMin
	}
	return theta
}
