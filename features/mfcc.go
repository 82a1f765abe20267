package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// topDB is the dynamic range kept below the loudest mel cell.
const topDB = 80.0

// amin floors power before the log.
const amin = 1e-10

// mfcc computes the [NumMFCC x frames] cepstral matrix. Frames are centered:
// the signal is zero-padded by FFTSize/2 on both sides, giving
// 1 + len(pcm)/HopLength frames.
func (e *Extractor) mfcc(pcm []float64) *mat.Dense {
	cfg := e.cfg
	nfft := cfg.FFTSize
	pad := nfft / 2
	halfFFT := nfft/2 + 1

	padded := make([]float64, len(pcm)+2*pad)
	copy(padded[pad:], pcm)
	numFrames := 1 + (len(padded)-nfft)/cfg.HopLength

	fft := fourier.NewFFT(nfft)
	frame := make([]float64, nfft)
	coeffs := make([]complex128, halfFFT)
	power := make([]float64, halfFFT)

	// mel energies in dB, [frames][mels]
	melDB := make([][]float64, numFrames)
	peak := math.Inf(-1)
	for t := 0; t < numFrames; t++ {
		start := t * cfg.HopLength
		for i := 0; i < nfft; i++ {
			frame[i] = padded[start+i] * e.window[i]
		}
		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power[k] = re*re + im*im
		}

		row := make([]float64, cfg.NumMels)
		for m, filter := range e.melBank {
			sum := 0.0
			for k, w := range filter {
				if w != 0 {
					sum += w * power[k]
				}
			}
			db := 10 * math.Log10(math.Max(amin, sum))
			row[m] = db
			peak = math.Max(peak, db)
		}
		melDB[t] = row
	}

	floor := peak - topDB
	out := mat.NewDense(cfg.NumMFCC, numFrames, nil)
	for t, row := range melDB {
		for m := range row {
			if row[m] < floor {
				row[m] = floor
			}
		}
		for k, basis := range e.dct {
			sum := 0.0
			for m, b := range basis {
				sum += b * row[m]
			}
			out.Set(k, t, sum)
		}
	}
	return out
}

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// hzToMel converts frequency in Hz to the HTK mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts an HTK mel value back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterBank builds area-normalized triangular filters spanning
// [0, sampleRate/2]. Returns [numMels][fftSize/2+1].
func melFilterBank(numMels, fftSize, sampleRate int) [][]float64 {
	halfFFT := fftSize/2 + 1
	maxMel := hzToMel(float64(sampleRate) / 2)

	edges := make([]float64, numMels+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(numMels+1))
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		lo, center, hi := edges[m], edges[m+1], edges[m+2]
		norm := 2.0 / (hi - lo)
		filter := make([]float64, halfFFT)
		for k := range filter {
			f := float64(k) * float64(sampleRate) / float64(fftSize)
			up := (f - lo) / (center - lo)
			down := (hi - f) / (hi - center)
			if w := math.Min(up, down); w > 0 {
				filter[k] = w * norm
			}
		}
		bank[m] = filter
	}
	return bank
}

// dctMatrix returns the first rows of the orthonormal DCT-II basis of size n.
func dctMatrix(rows, n int) [][]float64 {
	basis := make([][]float64, rows)
	for k := range basis {
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		row := make([]float64, n)
		for i := range row {
			row[i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		basis[k] = row
	}
	return basis
}
