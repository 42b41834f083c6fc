package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/ambient-agents-go/pkg/audio"
)

func TestSineWaveRoundTrip(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "tone.wav")

	w, err := NewWriter(path, 22050, 2)
	is.NoErr(err)
	is.NoErr(w.WriteSineWave(440, 500, 0.5))
	is.NoErr(w.Close())
	is.NoErr(w.Close()) // second close is a no-op

	r, err := NewReader(path)
	is.NoErr(err)
	defer r.Close()

	h := r.Header()
	is.Equal(h.SampleRate, uint32(22050))
	is.Equal(h.NumChannels, uint16(2))
	is.Equal(h.BitsPerSample, uint16(16))
	is.Equal(h.Duration(), 500*time.Millisecond)

	buf, err := r.ReadBuffer()
	is.NoErr(err)
	is.Equal(buf.Frames(), 11025)
	is.Equal(buf.Duration(), 500*time.Millisecond)
	is.Equal(buf.Sample(100, 0), buf.Sample(100, 1)) // both channels carry the tone
}

func TestWriteFileAndLoad(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "clip.wav")

	in := audio.Buffer{Data: []byte{1, 0, 2, 0, 3, 0, 4, 0}, SampleRate: 8000, NumChannels: 1}
	is.NoErr(WriteFile(path, in))

	out, err := Load(path)
	is.NoErr(err)
	is.Equal(out.SampleRate, 8000)
	is.Equal(out.NumChannels, 1)
	is.Equal(out.Data, in.Data)
}

func TestWriteBufferFormatMismatch(t *testing.T) {
	is := is.New(t)

	w, err := NewWriter(filepath.Join(t.TempDir(), "x.wav"), 8000, 1)
	is.NoErr(err)
	defer w.Close()

	err = w.WriteBuffer(audio.Buffer{Data: make([]byte, 4), SampleRate: 16000, NumChannels: 1})
	is.True(err != nil) // sample rate mismatch rejected
}

// rawWAV builds a WAV file with an extra chunk before fmt and an odd-sized
// chunk before data.
func rawWAV(bits uint16, data []byte, declared uint32) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteString("WAVE")

	b.WriteString("LIST")
	binary.Write(&b, binary.LittleEndian, uint32(4))
	b.WriteString("INFO")

	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint32(11025))
	binary.Write(&b, binary.LittleEndian, uint32(11025*2))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, bits)

	b.WriteString("junk")
	binary.Write(&b, binary.LittleEndian, uint32(3))
	b.Write([]byte{9, 9, 9, 0}) // three bytes plus pad

	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, declared)
	b.Write(data)
	return b.Bytes()
}

func TestDecodeSkipsChunks(t *testing.T) {
	is := is.New(t)

	r, err := Decode(bytes.NewReader(rawWAV(16, []byte{1, 0, 2, 0}, 4)))
	is.NoErr(err)
	is.Equal(r.Header().SampleRate, uint32(11025))

	buf, err := r.ReadBuffer()
	is.NoErr(err)
	is.Equal(buf.Frames(), 2)
	is.Equal(buf.Sample(1, 0), int16(2))
}

func TestDecodeTruncatedData(t *testing.T) {
	is := is.New(t)

	// declares 100 bytes, carries 5
	r, err := Decode(bytes.NewReader(rawWAV(16, []byte{1, 0, 2, 0, 3}, 100)))
	is.NoErr(err)

	buf, err := r.ReadBuffer()
	is.NoErr(err)
	is.Equal(buf.Frames(), 2) // partial trailing frame dropped
}

func TestDecodeRejects(t *testing.T) {
	is := is.New(t)

	_, err := Decode(bytes.NewReader(rawWAV(8, []byte{1, 2}, 2)))
	is.True(err != nil) // 8-bit rejected

	_, err = Decode(bytes.NewReader([]byte("RIFF\x00\x00\x00\x00AVI ")))
	is.True(err != nil) // not WAVE

	_, err = Decode(bytes.NewReader([]byte("RIF")))
	is.True(err != nil) // short header

	_, err = NewReader(filepath.Join(t.TempDir(), "missing.wav"))
	is.True(errors.Is(err, fs.ErrNotExist))
}
