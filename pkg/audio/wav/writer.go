package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

const bitsPerSample = 16

// Writer writes 16-bit PCM WAV files
type Writer struct {
	file          *os.File
	sampleRate    uint32
	numChannels   uint16
	framesWritten uint32
}

// NewWriter creates a new WAV file writer
func NewWriter(filename string, sampleRate uint32, numChannels uint16) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	writer := &Writer{
		file:        file,
		sampleRate:  sampleRate,
		numChannels: numChannels,
	}

	// Sizes are patched in Close.
	if err := writer.writeHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	return writer, nil
}

// WriteFile writes buf to filename as a complete WAV file.
func WriteFile(filename string, buf audio.Buffer) error {
	w, err := NewWriter(filename, uint32(buf.SampleRate), uint16(buf.NumChannels))
	if err != nil {
		return err
	}
	if err := w.WriteBuffer(buf); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// WriteBuffer appends the frames of buf. The buffer must match the
// writer's format.
func (w *Writer) WriteBuffer(buf audio.Buffer) error {
	if buf.SampleRate != int(w.sampleRate) || buf.NumChannels != int(w.numChannels) {
		return fmt.Errorf("buffer format %dHz/%dch does not match writer %dHz/%dch",
			buf.SampleRate, buf.NumChannels, w.sampleRate, w.numChannels)
	}
	frames := buf.Frames()
	if _, err := w.file.Write(buf.Data[:frames*buf.FrameSize()]); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	w.framesWritten += uint32(frames)
	return nil
}

// WriteSineWave writes a sine wave of the specified frequency and duration
// at the given amplitude (0.0-1.0).
func (w *Writer) WriteSineWave(frequency float64, durationMs int, amplitude float64) error {
	frames := int(w.sampleRate) * durationMs / 1000
	frame := make([]byte, int(w.numChannels)*audio.BytesPerSample)

	for i := 0; i < frames; i++ {
		t := float64(i) / float64(w.sampleRate)
		sample := int16(math.Sin(2*math.Pi*frequency*t) * 32767 * amplitude)

		for ch := 0; ch < int(w.numChannels); ch++ {
			binary.LittleEndian.PutUint16(frame[ch*audio.BytesPerSample:], uint16(sample))
		}
		if _, err := w.file.Write(frame); err != nil {
			return fmt.Errorf("failed to write sample: %w", err)
		}
		w.framesWritten++
	}

	return nil
}

// Close finalizes the WAV file by updating the header with correct sizes
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}

	dataSize := w.framesWritten * uint32(w.numChannels) * bitsPerSample / 8
	chunkSize := dataSize + 36

	if _, err := w.file.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to chunk size: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, chunkSize); err != nil {
		return fmt.Errorf("failed to write chunk size: %w", err)
	}

	if _, err := w.file.Seek(40, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to data size: %w", err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, dataSize); err != nil {
		return fmt.Errorf("failed to write data size: %w", err)
	}

	err := w.file.Close()
	w.file = nil
	return err
}

// writeHeader writes the 44-byte canonical header with zero sizes.
func (w *Writer) writeHeader() error {
	byteRate := w.sampleRate * uint32(w.numChannels) * bitsPerSample / 8
	blockAlign := w.numChannels * bitsPerSample / 8

	fields := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(0),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		w.numChannels,
		w.sampleRate,
		byteRate,
		blockAlign,
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		uint32(0),
	}
	for _, f := range fields {
		if err := binary.Write(w.file, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}
