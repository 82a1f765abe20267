// Package features turns encoded audio into the normalized MFCC matrix the
// audio emotion model consumes.
//
// The pipeline mirrors the training-time preprocessing:
//
//	bytes -> sniff format -> decode (WAV, MP3) -> mono -> resample
//	      -> MFCC [NumMFCC x frames] -> global z-score
//
// Default parameters:
//
//	SampleRate: 16000
//	NumMFCC:    40
//	FFTSize:    2048
//	HopLength:  512
//	NumMels:    128
//
// Failures are returned as errors wrapping one of ErrUnsupportedFormat,
// ErrDecode or ErrTooShort; callers pick their own fallback.
package features

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrUnsupportedFormat is returned for containers or codecs that cannot
	// be decoded (m4a/aac, ogg, arbitrary bytes).
	ErrUnsupportedFormat = errors.New("features: unsupported audio format")

	// ErrDecode is returned when a supported container is corrupt.
	ErrDecode = errors.New("features: decode failed")

	// ErrTooShort is returned when the decoded signal has fewer samples than
	// one hop.
	ErrTooShort = errors.New("features: audio too short")
)

// Epsilon is added to the standard deviation during normalization.
const Epsilon = 1e-6

// Config controls decoding and MFCC extraction.
type Config struct {
	SampleRate int // target sample rate in Hz
	NumMFCC    int // coefficients kept per frame
	FFTSize    int // STFT window and FFT length
	HopLength  int // samples between frames
	NumMels    int // mel bands before the DCT
}

// DefaultConfig returns the parameters the audio model was trained with.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		NumMFCC:    40,
		FFTSize:    2048,
		HopLength:  512,
		NumMels:    128,
	}
}

// Extractor is safe for concurrent use; all per-call state is allocated in
// Extract.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
	dct     [][]float64
}

// New creates an Extractor. Zero fields of cfg take their default values.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.NumMFCC <= 0 {
		cfg.NumMFCC = def.NumMFCC
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = def.FFTSize
	}
	if cfg.HopLength <= 0 {
		cfg.HopLength = def.HopLength
	}
	if cfg.NumMels <= 0 {
		cfg.NumMels = def.NumMels
	}
	if cfg.NumMFCC > cfg.NumMels {
		cfg.NumMFCC = cfg.NumMels
	}
	return &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.FFTSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate),
		dct:     dctMatrix(cfg.NumMFCC, cfg.NumMels),
	}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Extract decodes data and returns the normalized MFCC matrix with
// NumMFCC rows and one column per frame.
func (e *Extractor) Extract(data []byte) (*mat.Dense, error) {
	pcm, rate, err := Decode(data)
	if err != nil {
		return nil, err
	}
	pcm, err = Resample(pcm, rate, e.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	return e.FromPCM(pcm)
}

// FromPCM computes the normalized MFCC matrix of mono samples in [-1, 1]
// already at the configured sample rate.
func (e *Extractor) FromPCM(pcm []float64) (*mat.Dense, error) {
	if len(pcm) < e.cfg.HopLength {
		return nil, fmt.Errorf("%w: %d samples, need at least %d", ErrTooShort, len(pcm), e.cfg.HopLength)
	}
	m := e.mfcc(pcm)
	Normalize(m)
	return m, nil
}

// Normalize applies a global z-score to m in place.
func Normalize(m *mat.Dense) {
	raw := m.RawMatrix()
	mean, std := stat.PopMeanStdDev(raw.Data, nil)
	for i, v := range raw.Data {
		raw.Data[i] = (v - mean) / (std + Epsilon)
	}
}

// Float32 flattens m row-major for tensor input.
func Float32(m *mat.Dense) []float32 {
	r, c := m.Dims()
	out := make([]float32, 0, r*c)
	for i := 0; i < r; i++ {
		for _, v := range m.RawRowView(i) {
			out = append(out, float32(v))
		}
	}
	return out
}
