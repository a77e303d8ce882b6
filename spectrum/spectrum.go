// Package spectrum describes the visible wavelengths used for white light.
package spectrum

import "math"

const (
	// VisibleLo and VisibleHi bound the sampled visible band, in nanometers.
	VisibleLo = 400.0
	VisibleHi = 700.0

	// SunlightSamples is the number of wavelengths a white light source emits.
	SunlightSamples = 7
)

// Visible returns n wavelengths evenly spaced over [VisibleLo, VisibleHi],
// ordered from blue to red.
func Visible(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{(VisibleLo + VisibleHi) / 2}
	}
	out := make([]float64, n)
	step := (VisibleHi - VisibleLo) / float64(n-1)
	for i := range out {
		out[i] = VisibleLo + float64(i)*step
	}
	return out
}

// Sunlight is the default white light sample set.
func Sunlight() []float64 {
	return Visible(SunlightSamples)
}

// RGB is a display color with components in [0, 1].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// ToRGB approximates the display color of monochromatic light, for drawing
// paths.  An untagged (zero) wavelength is drawn white.
func ToRGB(wavelength float64) RGB {
	var c RGB
	switch {
	case wavelength == 0:
		return RGB{1, 1, 1}
	case wavelength >= 380 && wavelength < 440:
		c = RGB{-(wavelength - 440) / (440 - 380), 0, 1}
	case wavelength >= 440 && wavelength < 490:
		c = RGB{0, (wavelength - 440) / (490 - 440), 1}
	case wavelength >= 490 && wavelength < 510:
		c = RGB{0, 1, -(wavelength - 510) / (510 - 490)}
	case wavelength >= 510 && wavelength < 580:
		c = RGB{(wavelength - 510) / (580 - 510), 1, 0}
	case wavelength >= 580 && wavelength < 645:
		c = RGB{1, -(wavelength - 645) / (645 - 580), 0}
	case wavelength >= 645 && wavelength <= 780:
		c = RGB{1, 0, 0}
	default:
		return RGB{}
	}

	// Intensity falls off near the limits of vision.
	factor := 1.0
	switch {
	case wavelength < 420:
		factor = 0.3 + 0.7*(wavelength-380)/(420-380)
	case wavelength > 700:
		factor = 0.3 + 0.7*(780-wavelength)/(780-700)
	}
	return RGB{
		R: math.Min(1, c.R*factor),
		G: math.Min(1, c.G*factor),
		B: math.Min(1, c.B*factor),
	}
}
