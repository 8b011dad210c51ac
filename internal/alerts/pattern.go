package alerts

import (
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
)

// Tone 一个音调
type Tone struct {
	FreqHz   int           `json:"freq_hz" yaml:"freq_hz"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Pattern 一种告警的节奏：Beeps 声，每声 Beep 长，声间 Pause；Tones 非空时按音调序列播放
type Pattern struct {
	Beeps int           `json:"beeps" yaml:"beeps"`
	Beep  time.Duration `json:"beep" yaml:"beep"`
	Pause time.Duration `json:"pause" yaml:"pause"`
	Tones []Tone        `json:"tones,omitempty" yaml:"tones,omitempty"`
	Gap   time.Duration `json:"gap,omitempty" yaml:"gap,omitempty"`
}

// Silent 无声
func (p Pattern) Silent() bool { return p.Beeps == 0 && len(p.Tones) == 0 }

// Duration 播放总时长
func (p Pattern) Duration() time.Duration {
	if len(p.Tones) > 0 {
		var d time.Duration
		for i, t := range p.Tones {
			if i > 0 {
				d += p.Gap
			}
			d += t.Duration
		}
		return d
	}
	if p.Beeps == 0 {
		return 0
	}
	return time.Duration(p.Beeps)*p.Beep + time.Duration(p.Beeps-1)*p.Pause
}

const (
	shortBeep  = 200 * time.Millisecond
	shortPause = 150 * time.Millisecond
)

var patterns = map[domain.AlertType]Pattern{
	domain.AlertNone:       {},
	domain.AlertHit:        {Beeps: 1, Beep: shortBeep, Pause: shortPause},
	domain.AlertDouble:     {Beeps: 2, Beep: shortBeep, Pause: shortPause},
	domain.AlertSplit:      {Beeps: 3, Beep: shortBeep, Pause: shortPause},
	domain.AlertSurrender:  {Beeps: 4, Beep: shortBeep, Pause: shortPause},
	domain.AlertInsurance:  {Beeps: 5, Beep: 100 * time.Millisecond, Pause: 80 * time.Millisecond},
	domain.AlertCountReset: {Beeps: 1, Beep: 800 * time.Millisecond},
	domain.AlertNewShoe:    {Beeps: 2, Beep: 600 * time.Millisecond, Pause: 400 * time.Millisecond},
	domain.AlertHighCount: {
		Tones: []Tone{{FreqHz: 800, Duration: 200 * time.Millisecond}, {FreqHz: 1000, Duration: 200 * time.Millisecond}},
		Gap:   50 * time.Millisecond,
	},
}

// PatternFor 告警码对应的节奏，未知告警码视为无声
func PatternFor(a domain.AlertType) Pattern {
	return patterns[a]
}
