package slots

import (
	"fmt"
	"strings"
	"time"
)

// DefaultStartTimes are the intraday start times offered on every working day.
var DefaultStartTimes = []string{"08:00", "09:00", "10:00", "14:00", "15:00", "16:00"}

const (
	DefaultDuration    = 30 * time.Minute
	DefaultHorizonDays = 7
	DefaultMaxSlots    = 50
)

// Config tunes a Generator. Zero values fall back to defaults.
type Config struct {
	Location   *time.Location
	StartTimes []string
	Duration   time.Duration
	MaxSlots   int
	Now        func() time.Time
}

// Generator produces slots for a doctor over a horizon of working days.
type Generator struct {
	loc        *time.Location
	starts     []clock
	duration   time.Duration
	maxSlots   int
	now        func() time.Time
	startIndex map[string]struct{}
}

type clock struct {
	hour, minute int
	label        string
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	g := &Generator{
		loc:        cfg.Location,
		duration:   cfg.Duration,
		maxSlots:   cfg.MaxSlots,
		now:        cfg.Now,
		startIndex: make(map[string]struct{}),
	}
	if g.loc == nil {
		g.loc = time.UTC
	}
	if g.duration <= 0 {
		g.duration = DefaultDuration
	}
	if g.maxSlots <= 0 {
		g.maxSlots = DefaultMaxSlots
	}
	if g.now == nil {
		g.now = time.Now
	}
	starts := cfg.StartTimes
	if len(starts) == 0 {
		starts = DefaultStartTimes
	}
	for _, raw := range starts {
		t, err := time.Parse(TimeLayout, strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("slots: bad start time %q: %w", raw, err)
		}
		c := clock{hour: t.Hour(), minute: t.Minute(), label: t.Format(TimeLayout)}
		if _, dup := g.startIndex[c.label]; dup {
			continue
		}
		if len(g.starts) > 0 && c.label <= g.starts[len(g.starts)-1].label {
			return nil, fmt.Errorf("slots: start times must be ascending, got %s after %s", c.label, g.starts[len(g.starts)-1].label)
		}
		g.starts = append(g.starts, c)
		g.startIndex[c.label] = struct{}{}
	}
	return g, nil
}

// SlotsPerDay is the number of start times offered per working day.
func (g *Generator) SlotsPerDay() int {
	return len(g.starts)
}

// Generate returns the working-day slots for doctorID from tomorrow through
// horizonDays days ahead, ordered by (date, start time) and capped at the
// configured maximum. horizonDays <= 0 uses the default horizon.
func (g *Generator) Generate(doctorID string, horizonDays int) []Slot {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	today := g.today()
	out := make([]Slot, 0, min(g.maxSlots, horizonDays*len(g.starts)))
	for offset := 1; offset <= horizonDays; offset++ {
		day := today.AddDate(0, 0, offset)
		if !isWorkingDay(day) {
			continue
		}
		for _, c := range g.starts {
			if len(out) >= g.maxSlots {
				return out
			}
			out = append(out, g.build(doctorID, day, c))
		}
	}
	return out
}

// Parse validates a client-supplied (doctor, date, time) against the working
// rules and returns the matching Slot.
func (g *Generator) Parse(doctorID, date, startTime string) (Slot, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return Slot{}, fmt.Errorf("%w: doctor id required", ErrInvalidSlot)
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), g.loc)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidSlot, date)
	}
	t, err := time.Parse(TimeLayout, strings.TrimSpace(startTime))
	if err != nil {
		return Slot{}, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidSlot, startTime)
	}
	label := t.Format(TimeLayout)
	if _, ok := g.startIndex[label]; !ok {
		return Slot{}, fmt.Errorf("%w: %s is not an offered start time", ErrInvalidSlot, label)
	}
	if !isWorkingDay(day) {
		return Slot{}, fmt.Errorf("%w: %s is not a working day", ErrInvalidSlot, day.Format(DateLayout))
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, g.loc)
	if !start.After(g.now().In(g.loc)) {
		return Slot{}, fmt.Errorf("%w: %s %s is in the past", ErrInvalidSlot, day.Format(DateLayout), label)
	}
	return g.build(doctorID, day, clock{hour: t.Hour(), minute: t.Minute(), label: label}), nil
}

func (g *Generator) build(doctorID string, day time.Time, c clock) Slot {
	start := time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, g.loc)
	end := start.Add(g.duration)
	s := Slot{
		DoctorID:  doctorID,
		Date:      start.Format(DateLayout),
		StartTime: c.label,
		EndTime:   end.Format(TimeLayout),
		Weekday:   start.Weekday().String(),
	}
	s.SlotKey = s.Key().String()
	return s
}

func (g *Generator) today() time.Time {
	now := g.now().In(g.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.loc)
}

func isWorkingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}
