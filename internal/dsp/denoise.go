// Package dsp holds the signal processing applied to the separated vocal stem.
package dsp

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Denoiser reduces background noise in a mono waveform.
type Denoiser interface {
	Denoise(samples []float64, sampleRate int) ([]float64, error)
}

// SpectralGate is a stationary spectral-gating noise reducer. The noise
// profile of each frequency bin is estimated from the signal itself and bins
// that do not rise above it are attenuated.
type SpectralGate struct {
	FFTSize          int
	ThresholdStd     float64
	PropDecrease     float64
	FreqMaskSmoothHz float64
	TimeMaskSmoothMs float64
}

// NewSpectralGate returns a gate with the usual defaults for speech.
func NewSpectralGate() *SpectralGate {
	return &SpectralGate{
		FFTSize:          1024,
		ThresholdStd:     1.5,
		PropDecrease:     1.0,
		FreqMaskSmoothHz: 500,
		TimeMaskSmoothMs: 50,
	}
}

const minMagnitude = 1e-10

// Denoise returns a waveform of the same length with noise-dominated bins removed.
func (g *SpectralGate) Denoise(samples []float64, sampleRate int) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, errors.Newf("invalid sample rate %d", sampleRate)
	}
	if len(samples) == 0 {
		return []float64{}, nil
	}
	nfft := g.FFTSize
	if nfft < 16 || nfft%4 != 0 {
		return nil, errors.Newf("fft size must be a multiple of 4 and at least 16, got %d", nfft)
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, errors.Newf("non-finite sample at index %d", i)
		}
	}

	hop := nfft / 4
	bins := nfft/2 + 1
	an := newAnalyzer(samples, nfft, hop)

	// Per-bin noise statistics need every frame before any mask can be built,
	// so spectra are recomputed on each pass instead of being kept.
	sum := make([]float64, bins)
	sumSq := make([]float64, bins)
	for f := 0; f < an.frames; f++ {
		for k, c := range an.spectrum(f) {
			d := magnitudeDB(c)
			sum[k] += d
			sumSq[k] += d * d
		}
	}

	threshold := make([]float64, bins)
	for k := range threshold {
		mean := sum[k] / float64(an.frames)
		variance := math.Max(sumSq[k]/float64(an.frames)-mean*mean, 0)
		threshold[k] = mean + g.ThresholdStd*math.Sqrt(variance)
	}

	mask := make([]bool, an.frames*bins)
	for f := 0; f < an.frames; f++ {
		row := mask[f*bins : (f+1)*bins]
		for k, c := range an.spectrum(f) {
			row[k] = magnitudeDB(c) > threshold[k]
		}
	}

	freqRadius := int(math.Round(g.FreqMaskSmoothHz / (float64(sampleRate) / float64(nfft)) / 2))
	timeRadius := int(math.Round(g.TimeMaskSmoothMs / 1000 * float64(sampleRate) / float64(hop) / 2))
	smooth := newMaskSmoother(mask, an.frames, bins, timeRadius, freqRadius)

	prop := g.PropDecrease
	if prop < 0 || prop > 1 {
		prop = 1
	}

	out := make([]float64, len(an.padded))
	norm := make([]float64, len(an.padded))
	seq := make([]float64, nfft)
	for f := 0; f < an.frames; f++ {
		coeffs := an.spectrum(f)
		for k, m := range smooth.row(f) {
			coeffs[k] *= complex(m*prop+(1-prop), 0)
		}
		seq = an.fft.Sequence(seq, coeffs)
		start := f * hop
		for i, v := range seq {
			// Sequence is unnormalized; scale back by the transform length.
			out[start+i] += v / float64(nfft) * an.window[i]
			norm[start+i] += an.window[i] * an.window[i]
		}
	}

	result := make([]float64, len(samples))
	for i := range result {
		idx := i + nfft/2
		if norm[idx] > 1e-8 {
			result[i] = out[idx] / norm[idx]
		}
	}
	return result, nil
}

// analyzer produces Hann-windowed spectra of a signal padded by half a frame
// on both sides. The returned slice is reused by the next call.
type analyzer struct {
	fft    *fourier.FFT
	window []float64
	padded []float64
	hop    int
	frames int
	frame  []float64
	coeffs []complex128
}

func newAnalyzer(samples []float64, nfft, hop int) *analyzer {
	padded := make([]float64, len(samples)+nfft)
	copy(padded[nfft/2:], samples)
	return &analyzer{
		fft:    fourier.NewFFT(nfft),
		window: periodicHann(nfft),
		padded: padded,
		hop:    hop,
		frames: len(samples)/hop + 1,
		frame:  make([]float64, nfft),
		coeffs: make([]complex128, nfft/2+1),
	}
}

func (a *analyzer) spectrum(f int) []complex128 {
	start := f * a.hop
	for i := range a.frame {
		a.frame[i] = a.padded[start+i] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)
	return a.coeffs
}

func magnitudeDB(c complex128) float64 {
	return 20 * math.Log10(math.Max(cmplxAbs(c), minMagnitude))
}

func periodicHann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// maskSmoother averages a binary frames x bins mask over a clipped
// (2*rt+1) x (2*rf+1) box. Rows must be requested in increasing order; only
// per-bin running counts are kept between calls.
type maskSmoother struct {
	mask   []bool
	frames int
	bins   int
	rt, rf int

	lo, hi int
	counts []int
	prefix []int
	gain   []float64
}

func newMaskSmoother(mask []bool, frames, bins, rt, rf int) *maskSmoother {
	return &maskSmoother{
		mask:   mask,
		frames: frames,
		bins:   bins,
		rt:     max(rt, 0),
		rf:     max(rf, 0),
		counts: make([]int, bins),
		prefix: make([]int, bins+1),
		gain:   make([]float64, bins),
	}
}

// row returns the smoothed mask of frame f. The slice is reused by the next call.
func (m *maskSmoother) row(f int) []float64 {
	lo, hi := clipWindow(f, m.rt, m.frames)
	for ; m.hi < hi; m.hi++ {
		m.accumulate(m.hi, 1)
	}
	for ; m.lo < lo; m.lo++ {
		m.accumulate(m.lo, -1)
	}

	rows := float64(hi - lo)
	for k := range m.gain {
		flo, fhi := clipWindow(k, m.rf, m.bins)
		m.gain[k] = float64(m.counts[k]) / (rows * float64(fhi-flo))
	}
	return m.gain
}

// accumulate adds sign times the frequency-window counts of row r.
func (m *maskSmoother) accumulate(r, sign int) {
	row := m.mask[r*m.bins : (r+1)*m.bins]
	for k, on := range row {
		m.prefix[k+1] = m.prefix[k]
		if on {
			m.prefix[k+1]++
		}
	}
	for k := range row {
		lo, hi := clipWindow(k, m.rf, m.bins)
		m.counts[k] += sign * (m.prefix[hi] - m.prefix[lo])
	}
}

func clipWindow(i, radius, n int) (int, int) {
	return max(i-radius, 0), min(i+radius+1, n)
}
