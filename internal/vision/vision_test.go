package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replayLines = `# 录制：A 10 7
{"seq":1,"captured_at":"2026-01-01T00:00:00Z","card_ids":[0,22,45]}

{"seq":2,"captured_at":"2026-01-01T00:00:00.5Z","detections":[{"card_id":0,"confidence":0.9,"box":{"x":1,"y":2,"width":3,"height":4}}]}
{"seq":3,"captured_at":"2026-01-01T00:01:00Z"}
`

func writeReplay(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"seq":9,"card_ids":[12,51]}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), f.Seq)
	require.Len(t, f.Detections, 2)
	c, ok := f.Detections[1].Card()
	require.True(t, ok)
	assert.Equal(t, domain.King, c.Rank)
	assert.Equal(t, domain.Spades, c.Suit)
	assert.Equal(t, 1.0, f.Detections[0].Confidence)

	_, err = DecodeFrame([]byte(`{`))
	assert.Error(t, err)
}

func TestReplaySource(t *testing.T) {
	var slept []time.Duration
	src, err := OpenReplay(writeReplay(t, replayLines), ReplayOptions{
		Realtime: true,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	f1, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, f1.Detections, 3)

	f2, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f2.Seq)
	assert.Equal(t, 0.9, f2.Detections[0].Confidence)

	f3, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, f3.Detections)

	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, ErrSourceClosed))

	// 第二个间隔被压缩到上限
	assert.Equal(t, []time.Duration{500 * time.Millisecond, maxReplayGap}, slept)
}

func TestReplayLoop(t *testing.T) {
	src, err := OpenReplay(writeReplay(t, `{"seq":1}`+"\n"+`{"seq":2}`+"\n"), ReplayOptions{Loop: true})
	require.NoError(t, err)
	defer src.Close()

	var seqs []uint64
	for i := 0; i < 5; i++ {
		f, err := src.Next(context.Background())
		require.NoError(t, err)
		seqs = append(seqs, f.Seq)
	}
	assert.Equal(t, []uint64{1, 2, 1, 2, 1}, seqs)
}

func TestReplayEmptyLoopTerminates(t *testing.T) {
	src, err := OpenReplay(writeReplay(t, "# nothing\n"), ReplayOptions{Loop: true})
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.True(t, errors.Is(err, ErrSourceClosed))
	require.NoError(t, src.Close())
	_, err = src.Next(context.Background())
	assert.True(t, errors.Is(err, ErrSourceClosed))
}

func TestReplayBadLine(t *testing.T) {
	src := NewReplaySource(strings.NewReader("{\"seq\":1}\nnot json\n"), ReplayOptions{})
	_, err := src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestHTTPSource(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"seq":7,"card_ids":[0,1]}`))
		case 2:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "model not loaded", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", time.Millisecond)
	ctx := context.Background()

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), f.Seq)
	assert.Len(t, f.Detections, 2)

	f, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.Detections)

	_, err = src.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")

	require.NoError(t, src.Close())
	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, ErrSourceClosed))
}

func TestDialSource(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"seq":1,"card_ids":[5]}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"seq":2}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	src, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer src.Close()

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)

	f, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq)

	_, err = src.Next(ctx)
	assert.Error(t, err)
	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, ErrSourceClosed))
}

func TestPushSource(t *testing.T) {
	p := NewPushSource(2)
	ctx := context.Background()

	require.NoError(t, p.Push(domain.Frame{Seq: 1}))
	require.NoError(t, p.Push(domain.Frame{Seq: 2}))
	require.NoError(t, p.Push(domain.Frame{Seq: 3}))
	assert.Equal(t, uint64(1), p.Dropped())

	f, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq)

	require.NoError(t, p.Close())
	assert.True(t, errors.Is(p.Push(domain.Frame{Seq: 4}), ErrSourceClosed))

	f, err = p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Seq)
	_, err = p.Next(ctx)
	assert.True(t, errors.Is(err, ErrSourceClosed))
}

func TestPushSourceContext(t *testing.T) {
	p := NewPushSource(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Next(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, Options{Kind: "replay"}, nil)
	assert.Error(t, err)
	_, err = Open(ctx, Options{Kind: "push"}, nil)
	assert.Error(t, err)
	_, err = Open(ctx, Options{Kind: "camera"}, nil)
	assert.Error(t, err)

	push := NewPushSource(1)
	src, err := Open(ctx, Options{Kind: "push"}, push)
	require.NoError(t, err)
	assert.Same(t, push, src)

	src, err = Open(ctx, Options{Kind: "replay", Path: writeReplay(t, "{}\n")}, nil)
	require.NoError(t, err)
	require.NoError(t, src.Close())
}
