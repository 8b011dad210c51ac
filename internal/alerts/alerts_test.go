package alerts

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/betbot/bjadvisor/internal/common"
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternTable(t *testing.T) {
	tests := []struct {
		alert domain.AlertType
		beeps int
		dur   time.Duration
	}{
		{domain.AlertNone, 0, 0},
		{domain.AlertHit, 1, 200 * time.Millisecond},
		{domain.AlertDouble, 2, 550 * time.Millisecond},
		{domain.AlertSplit, 3, 900 * time.Millisecond},
		{domain.AlertSurrender, 4, 1250 * time.Millisecond},
		{domain.AlertInsurance, 5, 820 * time.Millisecond},
		{domain.AlertCountReset, 1, 800 * time.Millisecond},
		{domain.AlertNewShoe, 2, 1600 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.alert.String(), func(t *testing.T) {
			p := PatternFor(tt.alert)
			assert.Equal(t, tt.beeps, p.Beeps)
			assert.Equal(t, tt.dur, p.Duration())
		})
	}

	hc := PatternFor(domain.AlertHighCount)
	require.Len(t, hc.Tones, 2)
	assert.Equal(t, 800, hc.Tones[0].FreqHz)
	assert.Equal(t, 1000, hc.Tones[1].FreqHz)
	assert.Equal(t, 450*time.Millisecond, hc.Duration())
	assert.True(t, PatternFor(domain.AlertType(42)).Silent())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTerminalSinkRingsBell(t *testing.T) {
	out := &syncBuffer{}
	sink := NewTerminalSink(out, func(time.Duration) {})
	defer sink.Close()

	sink.Play(domain.AlertNone)
	sink.Play(domain.AlertSplit)

	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), "\a") == 3
	}, time.Second, 5*time.Millisecond)
}

func TestTerminalSinkDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	sink := NewTerminalSink(&syncBuffer{}, func(time.Duration) { <-release })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			sink.Play(domain.AlertInsurance)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Play 阻塞")
	}
	close(release)
	require.NoError(t, sink.Close())
}

type countingSink struct {
	mu  sync.Mutex
	got []domain.AlertType
}

func (c *countingSink) Play(a domain.AlertType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, a)
}

func TestFanOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	FanOut{a, nil, b, LogSink{}}.Play(domain.AlertDouble)
	assert.Equal(t, []domain.AlertType{domain.AlertDouble}, a.got)
	assert.Equal(t, []domain.AlertType{domain.AlertDouble}, b.got)
}

func TestHubBroadcast(t *testing.T) {
	clock := common.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	hub := NewHub(2, clock.Now)

	s1 := hub.Subscribe()
	s2 := hub.Subscribe()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Play(domain.AlertHit)
	ev := <-s1.C
	assert.Equal(t, uint64(1), ev.Seq)
	assert.Equal(t, domain.AlertHit, ev.Alert)
	assert.Equal(t, 1, ev.Pattern.Beeps)
	assert.Equal(t, clock.Now(), ev.At)
	assert.Equal(t, domain.AlertHit, (<-s2.C).Alert)

	s2.Close()
	s2.Close()
	assert.Equal(t, 1, hub.Subscribers())
	_, open := <-s2.C
	assert.False(t, open)

	// 慢订阅者：缓冲满后丢弃
	for i := 0; i < 5; i++ {
		hub.Play(domain.AlertNone)
	}
	assert.Len(t, s1.C, 2)
	s1.Close()
}
