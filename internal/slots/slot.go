// Package slots generates candidate appointment slots from fixed working-day
// and working-hour rules.
package slots

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DateLayout is the wire format of slot dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format of slot start/end times.
	TimeLayout = "15:04"
)

// ErrInvalidSlot is returned when a client-supplied slot cannot exist.
var ErrInvalidSlot = errors.New("slots: invalid slot")

// Key identifies one bookable (doctor, date, start time) unit.
type Key struct {
	DoctorID  string
	Date      string
	StartTime string
}

// String renders the key as doctor|date|time.
func (k Key) String() string {
	return k.DoctorID + "|" + k.Date + "|" + k.StartTime
}

// ParseKey reverses Key.String.
func ParseKey(raw string) (Key, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Key{}, fmt.Errorf("%w: malformed key %q", ErrInvalidSlot, raw)
	}
	return Key{DoctorID: parts[0], Date: parts[1], StartTime: parts[2]}, nil
}

// Slot is a candidate appointment before any hold is placed on it.
type Slot struct {
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Weekday   string `json:"weekday"`
	SlotKey   string `json:"slot_key"`
}

// Key returns the slot's identity.
func (s Slot) Key() Key {
	return Key{DoctorID: s.DoctorID, Date: s.Date, StartTime: s.StartTime}
}
