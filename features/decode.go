package features

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/h2non/filetype"
	"github.com/hajimehoshi/go-mp3"
	resampling "github.com/tphakala/go-audio-resampling"
)

// Format returns the sniffed container extension ("wav", "mp3", "m4a", ...)
// or "unknown".
func Format(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "unknown"
	}
	return kind.Extension
}

// Decode returns mono samples in [-1, 1] and their sample rate.
func Decode(data []byte) ([]float64, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty input", ErrDecode)
	}
	switch f := Format(data); f {
	case "wav":
		return decodeWAV(data)
	case "mp3":
		return decodeMP3(data)
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

func decodeWAV(data []byte) ([]float64, int, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid wav header", ErrDecode)
	}
	// 1 = integer PCM; float and compressed wav payloads are not handled.
	if d.WavAudioFormat != 1 {
		return nil, 0, fmt.Errorf("%w: wav audio format %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: missing wav format", ErrDecode)
	}

	chans := buf.Format.NumChannels
	depth := int(d.BitDepth)
	if depth <= 0 || depth > 32 {
		return nil, 0, fmt.Errorf("%w: bit depth %d", ErrDecode, depth)
	}
	scale := float64(int64(1) << (depth - 1))
	offset := 0.0
	if depth == 8 {
		// 8-bit wav is unsigned
		offset = scale
	}

	frames := len(buf.Data) / chans
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < chans; c++ {
			sum += (float64(buf.Data[i*chans+c]) - offset) / scale
		}
		out[i] = sum / float64(chans)
	}
	return out, buf.Format.SampleRate, nil
}

func decodeMP3(data []byte) ([]float64, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	// go-mp3 always yields 16-bit little-endian stereo.
	frames := len(raw) / 4
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		j := i * 4
		l := int16(raw[j]) | int16(raw[j+1])<<8
		r := int16(raw[j+2]) | int16(raw[j+3])<<8
		out[i] = (float64(l) + float64(r)) / 2 / 32768.0
	}
	return out, dec.SampleRate(), nil
}

// Resample converts mono samples from srcRate to dstRate. Equal rates return
// pcm unchanged.
func Resample(pcm []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate == dstRate || len(pcm) == 0 {
		return pcm, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("features: create resampler: %w", err)
	}
	out, err := r.Process(pcm)
	if err != nil {
		return nil, fmt.Errorf("features: resample %d->%d: %w", srcRate, dstRate, err)
	}
	return out, nil
}
