package greeting

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

func at(hour int) time.Time {
	return time.Date(2025, 3, 14, hour, 30, 0, 0, time.UTC)
}

func TestPeriodOf(t *testing.T) {
	cases := map[int]Period{
		0: Night, 4: Night, 5: Morning, 11: Morning, 12: Afternoon,
		16: Afternoon, 17: Evening, 21: Evening, 22: Night, 23: Night,
	}
	for h, want := range cases {
		if got := PeriodOf(at(h)); got != want {
			t.Errorf("PeriodOf(%02d:30) = %s, want %s", h, got, want)
		}
	}
}

func TestGreetingDeterministic(t *testing.T) {
	a := NewPicker(rand.NewPCG(1, 2)).Greeting(at(8), "Sam")
	b := NewPicker(rand.NewPCG(1, 2)).Greeting(at(8), "Sam")
	if a != b {
		t.Errorf("same seed gave %q and %q", a, b)
	}
	if !strings.Contains(a, "Sam") {
		t.Errorf("greeting %q does not address the user", a)
	}
}

func TestGreetingWithoutName(t *testing.T) {
	p := NewPicker(rand.NewPCG(3, 4))
	for i := 0; i < 20; i++ {
		g := p.Greeting(at(20), "")
		if strings.Contains(g, "%") || strings.Contains(g, ", ") {
			t.Fatalf("unexpected greeting %q", g)
		}
	}
}

func TestGreetingFromPeriodPool(t *testing.T) {
	p := NewPicker(rand.NewPCG(5, 6))
	for i := 0; i < 20; i++ {
		g := p.Greeting(at(9), "")
		found := slices.ContainsFunc(greetings[Morning], func(tpl string) bool {
			return strings.ReplaceAll(tpl, "%s", "") == g
		})
		if !found {
			t.Fatalf("greeting %q not from the morning pool", g)
		}
	}
}

func TestEncouragementEmptyDay(t *testing.T) {
	p := NewPicker(rand.NewPCG(7, 8))
	if got := p.Encouragement(0, 0); !slices.Contains(emptyDay, got) {
		t.Errorf("empty day message = %q", got)
	}
}

func TestPickerConcurrentUse(t *testing.T) {
	p := NewPicker(rand.NewPCG(3, 4))
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 300 {
				if p.Encouragement((i*j)%101, j%3) == "" || p.Greeting(at(j%24), "") == "" {
					t.Error("empty pick")
					return
				}
			}
		}()
	}
	wg.Wait()
}
