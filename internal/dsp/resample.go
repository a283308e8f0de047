package dsp

import (
	"math"

	"github.com/cockroachdb/errors"
)

// Resampler converts a waveform between sample rates.
type Resampler interface {
	Resample(samples []float64, fromRate, toRate int) ([]float64, error)
}

// SincResampler is a band-limited resampler using a Hann-windowed sinc kernel.
type SincResampler struct {
	// ZeroCrossings is the kernel half-width, in zero crossings of the
	// lower of the two Nyquist frequencies.
	ZeroCrossings int
	// Rolloff scales the cutoff below Nyquist to leave a transition band.
	Rolloff float64
}

// NewSincResampler returns a resampler with quality suited for speech stems.
func NewSincResampler() *SincResampler {
	return &SincResampler{ZeroCrossings: 32, Rolloff: 0.945}
}

// Resample returns ceil(len(samples) * toRate / fromRate) samples.
// Equal rates return an unmodified copy.
func (r *SincResampler) Resample(samples []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, errors.Newf("invalid resample rates %d -> %d", fromRate, toRate)
	}

	if fromRate == toRate {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}
	if len(samples) == 0 {
		return []float64{}, nil
	}

	zeroCrossings := r.ZeroCrossings
	if zeroCrossings <= 0 {
		zeroCrossings = 32
	}
	rolloff := r.Rolloff
	if rolloff <= 0 || rolloff > 1 {
		rolloff = 0.945
	}

	n := len(samples)
	outLen := int((int64(n)*int64(toRate) + int64(fromRate) - 1) / int64(fromRate))

	ratio := float64(toRate) / float64(fromRate)
	cutoff := rolloff * math.Min(1, ratio)
	halfWidth := float64(zeroCrossings) / cutoff

	out := make([]float64, outLen)
	step := float64(fromRate) / float64(toRate)
	for j := range out {
		center := float64(j) * step
		lo := int(math.Ceil(center - halfWidth))
		hi := int(math.Floor(center + halfWidth))
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}

		var acc float64
		for i := lo; i <= hi; i++ {
			d := center - float64(i)
			acc += samples[i] * cutoff * sinc(cutoff*d) * hann(d/halfWidth)
		}
		out[j] = acc
	}

	return out, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// hann is the symmetric Hann taper on [-1, 1], zero outside.
func hann(x float64) float64 {
	if x <= -1 || x >= 1 {
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*x))
}
