// Package greeting picks the short human strings shown at the top of the day view.
package greeting

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Period is a coarse part of the day.
type Period string

const (
	Morning   Period = "morning"
	Afternoon Period = "afternoon"
	Evening   Period = "evening"
	Night     Period = "night"
)

var greetings = map[Period][]string{
	Morning: {
		"Good morning%s",
		"Rise and shine%s",
		"Morning%s! Let's make today count",
		"A fresh start%s",
	},
	Afternoon: {
		"Good afternoon%s",
		"Hope your day is going well%s",
		"Keep the momentum going%s",
	},
	Evening: {
		"Good evening%s",
		"Time to wind down%s",
		"How did today go%s?",
	},
	Night: {
		"Still up%s?",
		"Late night%s. Don't forget to rest",
		"Burning the midnight oil%s?",
	},
}

var emptyDay = []string{
	"Nothing planned yet. What matters most today?",
	"A blank page. Add one thing you'd be proud to finish.",
	"Your day is wide open.",
}

// PeriodOf returns the part of the day for t in t's location.
func PeriodOf(t time.Time) Period {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 22:
		return Evening
	default:
		return Night
	}
}

// Picker chooses among variants with its own random source. It is safe for
// concurrent use.
type Picker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPicker returns a Picker. A nil source uses a time-seeded PCG.
func NewPicker(src rand.Source) *Picker {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1)
	}
	return &Picker{rnd: rand.New(src)}
}

// Greeting returns a time-of-day greeting, addressing name when it is non-empty.
func (p *Picker) Greeting(t time.Time, name string) string {
	suffix := ""
	if name != "" {
		suffix = ", " + name
	}
	return fmt.Sprintf(p.pick(greetings[PeriodOf(t)]), suffix)
}

// Encouragement returns a line that fits a completion rate in percent.
// total is the number of tasks the rate was computed over.
func (p *Picker) Encouragement(rate, total int) string {
	switch {
	case total == 0:
		return p.pick(emptyDay)
	case rate >= 100:
		return p.pick([]string{"Everything done. Enjoy the rest of your day!", "Clean sweep today!"})
	case rate >= 75:
		return p.pick([]string{"Almost there. Finish strong.", "Great progress today."})
	case rate >= 40:
		return p.pick([]string{"Halfway there. Keep going.", "Solid progress so far."})
	case rate > 0:
		return p.pick([]string{"Every step counts.", "You've started. That's the hardest part."})
	default:
		return p.pick([]string{"Pick one small task and begin.", "Start with the easiest win."})
	}
}

func (p *Picker) pick(options []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return options[p.rnd.IntN(len(options))]
}
