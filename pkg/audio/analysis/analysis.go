// Package analysis extracts the catalog attributes of a recording:
// duration, loudness, a simple acousticness score, tempo and the lofi flag.
package analysis

import (
	"math"
	"time"

	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

const (
	frameLength = 2048
	hopLength   = 512

	minTempo = 30.0
	maxTempo = 240.0

	// Relative onset strength below which a recording has no rhythmic
	// attacks worth calling music.
	minOnsetStrength = 0.01
)

// Kind classifies a recording as music or ambient environment sound.
type Kind string

const (
	KindMusic       Kind = "music"
	KindEnvironment Kind = "environment"
)

// Features is the result of analyzing one buffer.
type Features struct {
	Duration time.Duration
	// RMS is the mean frame RMS of the mono signal, in [0,1].
	RMS float64
	// Peak is the largest absolute sample, in [0,1].
	Peak float64
	// Acousticness is RMS/Peak: low for sparse, percussive material.
	Acousticness float64
	// Loudness is RMS scaled by 100.
	Loudness float64
	// Tempo in beats per minute; zero when no periodicity was found.
	Tempo float64
	// OnsetStrength is the mean positive RMS flux relative to the mean RMS.
	OnsetStrength float64
	Kind          Kind
}

// Lofi reports whether the tempo is in the 40-80 BPM range.
func (f Features) Lofi() bool {
	return f.Tempo >= 40 && f.Tempo <= 80
}

// Analyze computes the features of buf.
func Analyze(buf audio.Buffer) Features {
	f := Features{Duration: buf.Duration()}
	samples := buf.Mono()
	if len(samples) == 0 {
		f.Kind = KindEnvironment
		return f
	}

	for _, s := range samples {
		if a := math.Abs(s); a > f.Peak {
			f.Peak = a
		}
	}

	rms := frameRMS(samples)
	f.RMS = mean(rms)
	f.Loudness = f.RMS * 100

	peak := f.Peak
	if peak == 0 {
		peak = 1
	}
	f.Acousticness = math.Min(f.RMS/peak, 1)

	env := onsetEnvelope(rms)
	if f.RMS > 0 {
		f.OnsetStrength = mean(env) / f.RMS
	}

	frameRate := float64(buf.SampleRate) / hopLength
	f.Tempo = estimateTempo(env, frameRate)
	f.Kind = classify(f.Tempo, f.OnsetStrength)
	return f
}

func classify(tempo, onsetStrength float64) Kind {
	if tempo < minTempo || onsetStrength < minOnsetStrength {
		return KindEnvironment
	}
	return KindMusic
}

// frameRMS returns the RMS of each analysis frame. Signals shorter than one
// frame yield a single value.
func frameRMS(x []float64) []float64 {
	if len(x) <= frameLength {
		return []float64{rmsOf(x)}
	}
	n := 1 + (len(x)-frameLength)/hopLength
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hopLength
		out[i] = rmsOf(x[start : start+frameLength])
	}
	return out
}

func rmsOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// onsetEnvelope is the half-wave rectified first difference of the frame RMS.
func onsetEnvelope(rms []float64) []float64 {
	env := make([]float64, len(rms))
	for i := 1; i < len(rms); i++ {
		if d := rms[i] - rms[i-1]; d > 0 {
			env[i] = d
		}
	}
	return env
}

// estimateTempo picks the autocorrelation peak of the onset envelope within
// the 30-240 BPM lag range.
func estimateTempo(env []float64, frameRate float64) float64 {
	if len(env) < 2 || frameRate <= 0 {
		return 0
	}

	m := mean(env)
	centered := make([]float64, len(env))
	var energy float64
	for i, v := range env {
		centered[i] = v - m
		energy += centered[i] * centered[i]
	}
	if energy == 0 {
		return 0
	}

	minLag := int(math.Ceil(frameRate * 60 / maxTempo))
	maxLag := int(math.Floor(frameRate * 60 / minTempo))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}

	bestLag, best := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		for i := lag; i < len(centered); i++ {
			sum += centered[i] * centered[i-lag]
		}
		sum /= float64(len(centered) - lag)
		sum *= tempoPrior(60 * frameRate / float64(lag))
		if sum > best {
			bestLag, best = lag, sum
		}
	}
	if bestLag == 0 {
		return 0
	}
	return 60 * frameRate / float64(bestLag)
}

// tempoPrior is a log-normal weight centred on 120 BPM with a one-octave
// deviation. It breaks ties between a period and its multiples.
func tempoPrior(bpm float64) float64 {
	octaves := math.Log2(bpm / 120)
	return math.Exp(-0.5 * octaves * octaves)
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}
