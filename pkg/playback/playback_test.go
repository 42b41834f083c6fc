package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/ambient-agents-go/pkg/audio"
	"github.com/chriscow/ambient-agents-go/pkg/audio/fake"
	"github.com/chriscow/ambient-agents-go/pkg/audio/wav"
)

// writeTone writes a mono 8 kHz tone of the given length into dir.
func writeTone(t *testing.T, dir, name string, durationMs int) {
	t.Helper()
	w, err := wav.NewWriter(filepath.Join(dir, name), 8000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteSineWave(440, durationMs, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func newTestTool(t *testing.T) (*Tool, *fake.FakePlayer, string) {
	t.Helper()
	dir := t.TempDir()
	writeTone(t, dir, "giter.wav", 2000)

	player := fake.NewFakePlayer()
	tool, err := New(Config{AssetsDir: dir, Player: player})
	if err != nil {
		t.Fatal(err)
	}
	return tool, player, dir
}

func TestPlaySuccess(t *testing.T) {
	is := is.New(t)
	tool, player, _ := newTestTool(t)

	res := tool.Play(context.Background(), Request{Filename: "giter.wav", StartMS: 500, EndMS: 1500, WaitMS: 0})
	is.True(res.OK())
	is.Equal(res.String(), "Played track giter.wav from 500ms to 1500ms, then waited 0ms.")

	played := player.Played()
	is.Equal(len(played), 1)
	is.Equal(played[0].Duration(), time.Second) // 500..1500ms
}

func TestPlayClampsEnd(t *testing.T) {
	is := is.New(t)
	tool, player, _ := newTestTool(t)

	res := tool.Play(context.Background(), Request{Filename: "giter.wav", StartMS: 0, EndMS: 60000})
	is.True(res.OK())
	is.Equal(res.EndMS, int64(2000)) // clamped to the asset duration
	is.True(strings.Contains(res.String(), "to 2000ms"))
	is.Equal(player.Played()[0].Duration(), 2*time.Second)
}

func TestPlayStartBeyondEnd(t *testing.T) {
	is := is.New(t)
	tool, player, _ := newTestTool(t)

	res := tool.Play(context.Background(), Request{Filename: "giter.wav", StartMS: 5000, EndMS: 9000})
	is.True(res.OK())                    // nothing to play is not a failure
	is.True(player.Played()[0].Empty()) // empty clip
}

func TestPlayLargeOffsets(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantStart int64
		wantEnd   int64
	}{
		{"start and end far past the end", Request{Filename: "giter.wav", StartMS: 1_500_000_000, EndMS: 1_500_000_000}, 2000, 2000},
		{"end of 1e13", Request{Filename: "giter.wav", StartMS: 0, EndMS: 10_000_000_000_000}, 0, 2000},
		{"start of 1e12", Request{Filename: "giter.wav", StartMS: 1_000_000_000_000, EndMS: MaxMS}, 2000, 2000},
		{"start of 1e9 inside range", Request{Filename: "giter.wav", StartMS: 1000, EndMS: 1_000_000_000}, 1000, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			tool, player, _ := newTestTool(t)

			res := tool.Play(context.Background(), tt.req)
			is.True(res.OK()) // clamped, not a fault
			is.Equal(res.StartMS, tt.wantStart)
			is.Equal(res.EndMS, tt.wantEnd)
			is.Equal(len(player.Played()), 1)
			is.Equal(player.Played()[0].Duration(), ms(tt.wantEnd-tt.wantStart))
		})
	}
}

func TestPlayWaits(t *testing.T) {
	is := is.New(t)
	tool, _, _ := newTestTool(t)

	started := time.Now()
	res := tool.Play(context.Background(), Request{Filename: "giter.wav", EndMS: 100, WaitMS: 50})
	is.True(res.OK())
	is.True(time.Since(started) >= 50*time.Millisecond)
	is.True(strings.HasSuffix(res.String(), "then waited 50ms."))
}

func TestPlayInvalid(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"end before start", Request{Filename: "giter.wav", StartMS: 2000, EndMS: 1000}},
		{"negative start", Request{Filename: "giter.wav", StartMS: -1, EndMS: 1000}},
		{"negative wait", Request{Filename: "giter.wav", EndMS: 1000, WaitMS: -5}},
		{"no filename", Request{EndMS: 1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			tool, player, _ := newTestTool(t)

			res := tool.Play(context.Background(), tt.req)
			is.Equal(res.Status, StatusInvalid)
			is.True(strings.HasPrefix(res.String(), "Error:"))
			is.Equal(len(player.Played()), 0) // nothing played
		})
	}
}

func TestPlayNotFound(t *testing.T) {
	is := is.New(t)
	tool, player, dir := newTestTool(t)

	res := tool.Play(context.Background(), Request{Filename: "missing.wav", EndMS: 1000})
	is.Equal(res.Status, StatusNotFound)
	is.True(strings.Contains(res.String(), filepath.Join(dir, "missing.wav")))

	for _, name := range []string{"../giter.wav", "/etc/passwd", "a/../../x.wav"} {
		res = tool.Play(context.Background(), Request{Filename: name, EndMS: 1000})
		is.Equal(res.Status, StatusNotFound) // outside the asset directory
	}
	is.Equal(len(player.Played()), 0)
}

func TestPlayDecodeError(t *testing.T) {
	is := is.New(t)
	tool, _, dir := newTestTool(t)
	is.NoErr(os.WriteFile(filepath.Join(dir, "broken.wav"), []byte("garbage"), 0o644))

	res := tool.Play(context.Background(), Request{Filename: "broken.wav", EndMS: 1000})
	is.Equal(res.Status, StatusPlaybackError)
	is.True(strings.Contains(res.String(), "broken.wav"))
}

func TestPlayDeviceError(t *testing.T) {
	is := is.New(t)
	tool, player, _ := newTestTool(t)
	player.Err = errors.New("device unplugged")

	res := tool.Play(context.Background(), Request{Filename: "giter.wav", EndMS: 1000})
	is.Equal(res.Status, StatusPlaybackError)
	is.True(strings.Contains(res.String(), "device unplugged"))
}

func TestPlayTimeout(t *testing.T) {
	is := is.New(t)
	tool, player, _ := newTestTool(t)
	player.Block = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := tool.Play(ctx, Request{Filename: "giter.wav", EndMS: 1000})
	is.Equal(res.Status, StatusTimeout)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	player.Block = false
	res = tool.Play(ctx2, Request{Filename: "giter.wav", EndMS: 100, WaitMS: 10000})
	is.Equal(res.Status, StatusTimeout) // wait interrupted
}

func TestPlayBusy(t *testing.T) {
	is := is.New(t)
	tool, player, _ := newTestTool(t)
	player.Block = true

	var wg sync.WaitGroup
	var first Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = tool.Play(context.Background(), Request{Filename: "giter.wav", EndMS: 1000})
	}()
	<-player.Started()

	res := tool.Play(context.Background(), Request{Filename: "giter.wav", EndMS: 1000})
	is.Equal(res.Status, StatusBusy) // second playback rejected while the first runs

	player.Release()
	wg.Wait()
	is.True(first.OK())

	res = tool.Play(context.Background(), Request{Filename: "giter.wav", EndMS: 1000})
	is.True(res.OK()) // guard released
}

func TestPlayIdenticalCallsAreIndependent(t *testing.T) {
	is := is.New(t)
	tool, player, _ := newTestTool(t)

	req := Request{Filename: "giter.wav", StartMS: 0, EndMS: 1000, WaitMS: 20}
	started := time.Now()
	r1 := tool.Play(context.Background(), req)
	r2 := tool.Play(context.Background(), req)

	is.True(r1.OK())
	is.True(r2.OK())
	is.Equal(len(player.Played()), 2)                 // played twice
	is.True(time.Since(started) >= 40*time.Millisecond) // each followed by its wait
}

func TestPlayVolume(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	writeTone(t, dir, "tone.wav", 100)

	player := fake.NewFakePlayer()
	tool, err := New(Config{AssetsDir: dir, Player: player, Volume: 0.5})
	is.NoErr(err)
	is.True(tool.Play(context.Background(), Request{Filename: "tone.wav", EndMS: 100}).OK())

	full, err := wav.Load(filepath.Join(dir, "tone.wav"))
	is.NoErr(err)
	got := player.Played()[0]
	for i := 0; i < 50; i++ {
		diff := float64(got.Sample(i, 0)) - float64(full.Sample(i, 0))/2
		is.True(diff >= -0.5 && diff <= 0.5) // half amplitude, rounded
	}
}

func TestNewRequiresConfig(t *testing.T) {
	is := is.New(t)

	_, err := New(Config{AssetsDir: "x"})
	is.True(err != nil) // no player
	_, err = New(Config{Player: fake.NewFakePlayer()})
	is.True(err != nil) // no assets dir
}

func TestBudget(t *testing.T) {
	is := is.New(t)
	is.Equal(Budget(Request{StartMS: 1000, EndMS: 61000, WaitMS: 1000}), 61*time.Second)
	is.Equal(Budget(Request{StartMS: 5000, EndMS: 1000}), time.Duration(0))
	is.Equal(Budget(Request{EndMS: 10_000_000_000_000, WaitMS: 1000}), MaxBudget) // saturates
	is.Equal(Budget(Request{EndMS: MaxMS, WaitMS: MaxMS}), MaxBudget)
	is.Equal(Budget(Request{StartMS: -MaxMS, EndMS: MaxMS}), MaxBudget)
}

func TestMillisecondsSaturate(t *testing.T) {
	is := is.New(t)
	is.Equal(ms(1500), 1500*time.Millisecond)
	is.True(ms(MaxMS) > 0)
	is.True(ms(MaxMS+1) > 0) // no wraparound
	is.True(ms(-MaxMS-1) < 0)
}

var _ audio.Player = (*fake.FakePlayer)(nil)
