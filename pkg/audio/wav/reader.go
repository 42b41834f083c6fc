// Package wav decodes and encodes 16-bit PCM RIFF/WAVE files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

// ErrUnsupported is returned for WAVE files that are not 16-bit integer PCM.
var ErrUnsupported = errors.New("unsupported WAV format")

// Header represents a WAV file header
type Header struct {
	ChunkSize     uint32
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Duration returns the playback length described by the header.
func (h Header) Duration() time.Duration {
	frameSize := uint64(h.NumChannels) * uint64(h.BitsPerSample) / 8
	if frameSize == 0 || h.SampleRate == 0 {
		return 0
	}
	frames := uint64(h.DataSize) / frameSize
	return time.Duration(frames * uint64(time.Second) / uint64(h.SampleRate))
}

// Reader reads WAV files into PCM buffers
type Reader struct {
	r      io.ReadSeeker
	closer io.Closer
	header Header
}

// NewReader opens filename and parses its header.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	reader, err := Decode(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.closer = file
	return reader, nil
}

// Decode parses the header from r and leaves r positioned at the audio data.
func Decode(r io.ReadSeeker) (*Reader, error) {
	reader := &Reader{r: r}
	if err := reader.readHeader(); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	return reader, nil
}

// Load reads an entire WAV file into memory.
func Load(filename string) (audio.Buffer, error) {
	r, err := NewReader(filename)
	if err != nil {
		return audio.Buffer{}, err
	}
	defer r.Close()
	return r.ReadBuffer()
}

// Header returns the WAV file header information
func (r *Reader) Header() Header {
	return r.header
}

// ReadBuffer reads the data chunk. A file truncated before the declared
// data size yields the complete frames that are present.
func (r *Reader) ReadBuffer() (audio.Buffer, error) {
	buf := audio.Buffer{
		SampleRate:  int(r.header.SampleRate),
		NumChannels: int(r.header.NumChannels),
	}

	size := int64(r.header.DataSize)
	if remaining, err := r.remaining(); err == nil && remaining < size {
		size = remaining
	}

	data := make([]byte, size)
	n, err := io.ReadFull(r.r, data)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return buf, fmt.Errorf("failed to read audio data: %w", err)
	}

	n -= n % buf.FrameSize()
	buf.Data = data[:n]
	return buf, nil
}

// remaining returns the number of bytes between the current offset and the
// end of the input.
func (r *Reader) remaining() (int64, error) {
	cur, err := r.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := r.r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := r.r.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}

// Close closes the underlying file, if any
func (r *Reader) Close() error {
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

// readHeader reads and validates the WAV file header
func (r *Reader) readHeader() error {
	var riffHeader [12]byte
	if _, err := io.ReadFull(r.r, riffHeader[:]); err != nil {
		return fmt.Errorf("failed to read RIFF header: %w", err)
	}

	if string(riffHeader[0:4]) != "RIFF" {
		return fmt.Errorf("not a valid RIFF file")
	}
	if string(riffHeader[8:12]) != "WAVE" {
		return fmt.Errorf("not a valid WAVE file")
	}

	r.header.ChunkSize = binary.LittleEndian.Uint32(riffHeader[4:8])

	if err := r.readFmtChunk(); err != nil {
		return err
	}
	if err := r.readDataChunk(); err != nil {
		return err
	}

	if r.header.BitsPerSample != 16 {
		return fmt.Errorf("%w: only 16-bit samples are supported, got %d-bit", ErrUnsupported, r.header.BitsPerSample)
	}
	if r.header.NumChannels == 0 {
		return fmt.Errorf("%w: no channels", ErrUnsupported)
	}
	if r.header.SampleRate == 0 {
		return fmt.Errorf("%w: zero sample rate", ErrUnsupported)
	}

	return nil
}

// nextChunk reads a chunk header.
func (r *Reader) nextChunk() (string, uint32, error) {
	var chunkHeader [8]byte
	if _, err := io.ReadFull(r.r, chunkHeader[:]); err != nil {
		return "", 0, fmt.Errorf("failed to read chunk header: %w", err)
	}
	return string(chunkHeader[0:4]), binary.LittleEndian.Uint32(chunkHeader[4:8]), nil
}

// skip moves past a chunk body, including the pad byte of odd-sized chunks.
func (r *Reader) skip(size uint32) error {
	n := int64(size) + int64(size&1)
	if _, err := r.r.Seek(n, io.SeekCurrent); err != nil {
		return fmt.Errorf("failed to skip chunk: %w", err)
	}
	return nil
}

// readFmtChunk reads the format chunk
func (r *Reader) readFmtChunk() error {
	for {
		chunkID, chunkSize, err := r.nextChunk()
		if err != nil {
			return err
		}

		if chunkID != "fmt " {
			if err := r.skip(chunkSize); err != nil {
				return err
			}
			continue
		}

		if chunkSize < 16 {
			return fmt.Errorf("fmt chunk too small: %d bytes", chunkSize)
		}

		var fmtData [16]byte
		if _, err := io.ReadFull(r.r, fmtData[:]); err != nil {
			return fmt.Errorf("failed to read fmt data: %w", err)
		}

		audioFormat := binary.LittleEndian.Uint16(fmtData[0:2])
		// 0xFFFE is WAVE_FORMAT_EXTENSIBLE, accepted when the sample width is 16.
		if audioFormat != 1 && audioFormat != 0xFFFE {
			return fmt.Errorf("%w: only PCM format is supported, got format %d", ErrUnsupported, audioFormat)
		}

		r.header.NumChannels = binary.LittleEndian.Uint16(fmtData[2:4])
		r.header.SampleRate = binary.LittleEndian.Uint32(fmtData[4:8])
		r.header.BitsPerSample = binary.LittleEndian.Uint16(fmtData[14:16])

		if chunkSize > 16 {
			return r.skip(chunkSize - 16)
		}
		return nil
	}
}

// readDataChunk finds the data chunk and positions the reader at the start of audio data
func (r *Reader) readDataChunk() error {
	for {
		chunkID, chunkSize, err := r.nextChunk()
		if err != nil {
			return err
		}
		if chunkID == "data" {
			r.header.DataSize = chunkSize
			return nil
		}
		if err := r.skip(chunkSize); err != nil {
			return err
		}
	}
}
