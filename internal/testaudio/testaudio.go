// Package testaudio builds small encoded audio clips for tests.
package testaudio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Sine returns 16-bit PCM samples of a sine tone.
func Sine(freq float64, seconds float64, rate int) []int {
	n := int(seconds * float64(rate))
	out := make([]int, n)
	for i := range out {
		out[i] = int(0.5 * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

// WAV encodes interleaved 16-bit samples as a RIFF/WAVE file.
func WAV(t testing.TB, samples []int, rate, channels int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wav file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return data
}

// ToneWAV is a one second mono 440 Hz tone at rate.
func ToneWAV(t testing.TB, rate int) []byte {
	return WAV(t, Sine(440, 1, rate), rate, 1)
}

// M4AHeader mimics the start of an AAC/m4a recording as produced by phones.
var M4AHeader = []byte{
	0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' ',
	0x00, 0x00, 0x00, 0x00, 'M', '4', 'A', ' ', 'm', 'p', '4', '2',
	'i', 's', 'o', 'm', 0x00, 0x00, 0x00, 0x00,
}
