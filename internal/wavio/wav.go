// Package wavio loads and writes PCM WAV files as normalized mono waveforms.
package wavio

import (
	"math"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// OutputBitDepth is the PCM depth used when writing waveforms back to disk.
const OutputBitDepth = 16

const wavFormatPCM = 1

// ErrInvalidWAV is returned when a file is not a readable RIFF/WAVE file.
var ErrInvalidWAV = errors.New("not a valid wav file")

// Waveform is mono audio with samples normalized to [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the waveform length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Format describes a WAV file header.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Probe reads only the header of a WAV file.
func Probe(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Format{}, errors.Wrapf(ErrInvalidWAV, "probe %s", path)
	}

	return Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}, nil
}

// Load decodes a PCM WAV file at its native sample rate and downmixes it to mono.
func Load(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Waveform{}, errors.Wrapf(ErrInvalidWAV, "load %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, errors.Wrapf(err, "decode %s", path)
	}

	channels := int(dec.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	bitDepth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}

	return Waveform{
		Samples:    downmix(buf.Data, channels, bitDepth),
		SampleRate: int(dec.SampleRate),
	}, nil
}

// Save writes a mono waveform as 16-bit PCM, replacing any existing file at path.
// The data is written to a sibling temp file first and renamed into place.
func Save(path string, w Waveform) error {
	if w.SampleRate <= 0 {
		return errors.Newf("invalid sample rate %d", w.SampleRate)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".wavio-*.wav")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	enc := wav.NewEncoder(tmp, w.SampleRate, OutputBitDepth, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           quantize(w.Samples, OutputBitDepth),
		SourceBitDepth: OutputBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := enc.Close(); err != nil {
		return errors.Wrapf(err, "finalize %s", path)
	}
	if err := tmp.Chmod(targetMode(path)); err != nil {
		return errors.Wrapf(err, "set mode for %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close temp file for %s", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}

	committed = true
	return nil
}

// targetMode keeps the permissions of a file being replaced. New files get 0644.
func targetMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return info.Mode().Perm()
	}
	return 0o644
}

// downmix averages interleaved integer frames into normalized mono samples.
func downmix(data []int, channels, bitDepth int) []float64 {
	if channels <= 0 {
		channels = 1
	}
	scale := fullScale(bitDepth)

	frames := len(data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += data[i*channels+c]
		}
		out[i] = float64(sum) / float64(channels) / scale
	}
	return out
}

// quantize converts normalized samples to clipped integer PCM values.
func quantize(samples []float64, bitDepth int) []int {
	scale := fullScale(bitDepth)
	maxValue := scale - 1

	out := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(s * scale)
		if v > maxValue {
			v = maxValue
		}
		if v < -scale {
			v = -scale
		}
		out[i] = int(v)
	}
	return out
}

func fullScale(bitDepth int) float64 {
	if bitDepth <= 0 {
		bitDepth = OutputBitDepth
	}
	return float64(int64(1) << (bitDepth - 1))
}
