package nn

import (
	"fmt"
	"math"
)

// ActivationFunc is a node activation function.
type ActivationFunc func(x float64) float64

// ActivationFunctions maps function names to the actual activation functions.
// This allows configuration to specify activations by name.
var ActivationFunctions = map[string]ActivationFunc{
	"sigmoid":   Sigmoid,
	"logistic":  Logistic,
	"tanh":      Tanh,
	"relu":      ReLU,
	"leakyrelu": LeakyReLU,
	"identity":  Identity,
	"clamped":   Clamped,
	"gaussian":  Gaussian,
	"absolute":  Absolute,
	"abs":       Absolute, // alias
	"sine":      Sine,
	"hat":       Hat,
	"square":    Square,
	"cube":      Cube,
}

// GetActivation retrieves an activation function by name.
func GetActivation(name string) (ActivationFunc, error) {
	if fn, ok := ActivationFunctions[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownActivation, name)
}

// Sigmoid is the steepened logistic function 1/(1+exp(-4.9x)) used by NEAT.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-4.9*x))
}

// Logistic is the standard logistic function.
func Logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Tanh activation function.
func Tanh(x float64) float64 {
	return math.Tanh(x)
}

// ReLU (Rectified Linear Unit) activation function.
func ReLU(x float64) float64 {
	return math.Max(0, x)
}

// LeakyReLU passes negative inputs scaled by 0.001.
func LeakyReLU(x float64) float64 {
	if x < 0 {
		return 0.001 * x
	}
	return x
}

// Identity activation function (linear).
func Identity(x float64) float64 {
	return x
}

// Clamped clamps the input to [-1, 1].
func Clamped(x float64) float64 {
	return math.Max(-1, math.Min(x, 1))
}

// Gaussian activation function.
func Gaussian(x float64) float64 {
	return math.Exp(-x * x / 2.0)
}

// Absolute value activation function.
func Absolute(x float64) float64 {
	return math.Abs(x)
}

// Sine activation function.
func Sine(x float64) float64 {
	return math.Sin(x)
}

// Hat activation function (triangular pulse centered at 0).
func Hat(x float64) float64 {
	return math.Max(0.0, 1.0-math.Abs(x))
}

// Square activation function (x^2).
func Square(x float64) float64 {
	return x * x
}

// Cube activation function (x^3).
func Cube(x float64) float64 {
	return x * x * x
}
