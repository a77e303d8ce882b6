// Package material provides refraction index curves for lens materials.
package material

import (
	"fmt"
	"math"
	"sort"
)

// ReferenceWavelength is the wavelength, in nanometers, at which a material's
// nominal refraction index is quoted.  Rays without a wavelength see this
// index.
const ReferenceWavelength = 580.0

// IndexCurve gives the refraction index of a material at a wavelength in
// nanometers.
type IndexCurve func(wavelength float64) float64

func Constant(n float64) IndexCurve {
	return func(float64) float64 {
		return n
	}
}

// SellmeierCoefficients are [B1, B2, B3, C1, C2, C3], with the C terms in nm^2.
// Literature usually quotes C in um^2; 1 um^2 = 1e6 nm^2.
type SellmeierCoefficients [6]float64

func ParseSellmeier(coeffs []float64) (SellmeierCoefficients, error) {
	s := SellmeierCoefficients{}
	if len(coeffs) != len(s) {
		return s, fmt.Errorf("want 6 Sellmeier coefficients [B1, B2, B3, C1, C2, C3], got %d", len(coeffs))
	}
	copy(s[:], coeffs)
	return s, nil
}

func Sellmeier(s SellmeierCoefficients) IndexCurve {
	return func(wavelength float64) float64 {
		l2 := wavelength * wavelength
		sum := 1.0
		for i := 0; i < 3; i++ {
			sum += s[i] * l2 / (l2 - s[i+3])
		}
		return math.Sqrt(sum)
	}
}

// CauchyCoefficients are [A, B, C] for n = A + B/l^2 + C/l^4, with B in nm^2
// and C in nm^4.
type CauchyCoefficients [3]float64

func ParseCauchy(coeffs []float64) (CauchyCoefficients, error) {
	c := CauchyCoefficients{}
	if len(coeffs) < 1 || len(coeffs) > len(c) {
		return c, fmt.Errorf("want 1 to 3 Cauchy coefficients [A, B, C], got %d", len(coeffs))
	}
	copy(c[:], coeffs)
	return c, nil
}

func Cauchy(c CauchyCoefficients) IndexCurve {
	return func(wavelength float64) float64 {
		l2 := wavelength * wavelength
		return c[0] + c[1]/l2 + c[2]/(l2*l2)
	}
}

var named = map[string]SellmeierCoefficients{
	"Vacuum":            {0, 0, 0, 0, 0, 0},
	"Air":               {4.915889e-4, 5.368273e-5, -1.949567e-4, 4352.140, 17470.01, 4258444000},
	"Quartz":            {0.6961663, 0.4079426, 0.8974794, 4.67914826e+03, 1.35120631e+04, 9.79340025e+07},
	"PMMA (plexiglass)": {1.1819, 0, 0, 11313, 0, 0},
	"Window glass":      {1.03961212, 0.231792344, 1.01046945, 6000.69867, 20017.9144, 103560653},
	"Polycarbonate":     {1.4182, 0, 0, 21304, 0, 0},
}

// Lookup returns the Sellmeier coefficients of a named material.
func Lookup(name string) (SellmeierCoefficients, bool) {
	s, ok := named[name]
	return s, ok
}

// Names lists the known materials in sorted order.
func Names() []string {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// At evaluates the curve, substituting ReferenceWavelength for an untagged
// (zero) wavelength.
func (c IndexCurve) At(wavelength float64) float64 {
	if wavelength == 0 {
		wavelength = ReferenceWavelength
	}
	return c(wavelength)
}

// Check verifies that the curve gives a finite, positive index everywhere in
// [lo, hi], sampled every nanometer.
func (c IndexCurve) Check(lo, hi float64) error {
	for l := lo; l <= hi; l++ {
		n := c(l)
		if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
			return fmt.Errorf("refraction index at %v nm is %v", l, n)
		}
	}
	return nil
}
