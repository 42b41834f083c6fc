// Package audio holds the PCM buffer type shared by the decoder, the
// analyzer, the speech synthesizer and the output players.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample is fixed: every buffer carries 16-bit signed little-endian PCM.
const BytesPerSample = 2

// Buffer is interleaved 16-bit little-endian PCM.
type Buffer struct {
	Data        []byte
	SampleRate  int
	NumChannels int
}

// FrameSize returns the number of bytes per interleaved frame.
func (b Buffer) FrameSize() int {
	return b.NumChannels * BytesPerSample
}

// Frames returns the number of complete frames in the buffer.
func (b Buffer) Frames() int {
	if b.NumChannels <= 0 {
		return 0
	}
	return len(b.Data) / b.FrameSize()
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(b.Frames()) * int64(time.Second) / int64(b.SampleRate))
}

// Empty reports whether the buffer holds no complete frame.
func (b Buffer) Empty() bool {
	return b.Frames() == 0
}

// frameAt converts an offset to a frame index clamped to the buffer.
func (b Buffer) frameAt(offset time.Duration) int {
	if offset <= 0 {
		return 0
	}
	n := b.Frames()
	if offset >= b.Duration() {
		return n
	}
	// offset is below the buffer length here, so the product cannot overflow.
	idx := int(int64(offset) * int64(b.SampleRate) / int64(time.Second))
	if idx > n {
		return n
	}
	return idx
}

// Slice returns the frames between start and end. Both offsets are clamped
// to the buffer, and an inverted range yields an empty buffer. The returned
// buffer shares memory with b.
func (b Buffer) Slice(start, end time.Duration) Buffer {
	out := Buffer{SampleRate: b.SampleRate, NumChannels: b.NumChannels}
	if b.SampleRate <= 0 || b.NumChannels <= 0 {
		return out
	}
	from, to := b.frameAt(start), b.frameAt(end)
	if to <= from {
		out.Data = b.Data[:0]
		return out
	}
	fs := b.FrameSize()
	out.Data = b.Data[from*fs : to*fs]
	return out
}

// Sample returns the sample for the given frame and channel.
func (b Buffer) Sample(frame, channel int) int16 {
	off := frame*b.FrameSize() + channel*BytesPerSample
	return int16(binary.LittleEndian.Uint16(b.Data[off:]))
}

// Mono returns the buffer downmixed to one channel as floats in [-1, 1].
func (b Buffer) Mono() []float64 {
	n := b.Frames()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < b.NumChannels; c++ {
			sum += float64(b.Sample(i, c))
		}
		out[i] = sum / float64(b.NumChannels) / 32768.0
	}
	return out
}

// Convert resamples and remixes the buffer to the given format. Resampling
// is linear. Downmixing averages the source channels, upmixing copies the
// mono signal (or the first channel) into every output channel.
func (b Buffer) Convert(sampleRate, channels int) Buffer {
	if b.SampleRate == sampleRate && b.NumChannels == channels {
		return b
	}
	out := Buffer{SampleRate: sampleRate, NumChannels: channels}
	inFrames := b.Frames()
	if inFrames == 0 || sampleRate <= 0 || channels <= 0 || b.SampleRate <= 0 {
		return out
	}

	outFrames := int(int64(inFrames) * int64(sampleRate) / int64(b.SampleRate))
	out.Data = make([]byte, outFrames*channels*BytesPerSample)
	ratio := float64(b.SampleRate) / float64(sampleRate)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		i0 := int(pos)
		if i0 >= inFrames {
			i0 = inFrames - 1
		}
		i1 := i0 + 1
		if i1 >= inFrames {
			i1 = inFrames - 1
		}
		frac := pos - float64(i0)

		for c := 0; c < channels; c++ {
			v0 := b.mixed(i0, c, channels)
			v1 := b.mixed(i1, c, channels)
			v := v0 + (v1-v0)*frac
			off := (i*channels + c) * BytesPerSample
			binary.LittleEndian.PutUint16(out.Data[off:], uint16(clamp16(v)))
		}
	}
	return out
}

// Scale returns a copy of the buffer with every sample multiplied by
// volume (0.0 to 1.0). Out-of-range volumes are clamped.
func (b Buffer) Scale(volume float64) Buffer {
	if volume >= 1 {
		return b
	}
	if volume < 0 {
		volume = 0
	}
	out := Buffer{Data: make([]byte, len(b.Data)), SampleRate: b.SampleRate, NumChannels: b.NumChannels}
	n := len(b.Data) / BytesPerSample
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(b.Data[i*BytesPerSample:]))
		binary.LittleEndian.PutUint16(out.Data[i*BytesPerSample:], uint16(clamp16(float64(s)*volume)))
	}
	return out
}

// mixed returns the value of output channel c for a source frame when the
// output has outChannels channels.
func (b Buffer) mixed(frame, c, outChannels int) float64 {
	switch {
	case b.NumChannels == outChannels:
		return float64(b.Sample(frame, c))
	case outChannels == 1:
		var sum float64
		for ch := 0; ch < b.NumChannels; ch++ {
			sum += float64(b.Sample(frame, ch))
		}
		return sum / float64(b.NumChannels)
	case c < b.NumChannels:
		return float64(b.Sample(frame, c))
	default:
		return float64(b.Sample(frame, 0))
	}
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
