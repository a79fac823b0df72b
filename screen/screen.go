package screen

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gammazero/deque"
	"golang.org/x/exp/maps"

	c "lautenbacher.net/capraclock/config"
)

type Screen int

const (
	Logo Screen = iota
	Time
	Date
	Sensors
)

func (s Screen) String() string {
	switch s {
	case Logo:
		return "logo"
	case Time:
		return "time"
	case Date:
		return "date"
	case Sensors:
		return "sensors"
	}
	return fmt.Sprintf("screen(%d)", int(s))
}

// Rotation is the order in which the clock cycles through its screens. The
// logo, if enabled, is shown once before the first cycle; the time screen is
// always part of the cycle.
type Rotation struct {
	queue          deque.Deque[Screen]
	screenDuration time.Duration
	logoDuration   time.Duration
}

func NewRotation(conf *c.Config) *Rotation {
	r := &Rotation{
		screenDuration: conf.ScreenDuration(),
		logoDuration:   conf.LogoDuration(),
	}
	if conf.LogoFeatureEnabled() {
		r.queue.PushBack(Logo)
	}
	r.queue.PushBack(Time)
	if conf.DateFeatureEnabled() {
		r.queue.PushBack(Date)
	}
	if conf.SensorsFeatureEnabled() {
		r.queue.PushBack(Sensors)
	}
	return r
}

// Next returns the screen to show now together with how long to show it,
// and advances the rotation.
func (r *Rotation) Next() (Screen, time.Duration) {
	s := r.queue.PopFront()
	if s == Logo {
		return s, r.logoDuration
	}
	r.queue.PushBack(s)
	return s, r.screenDuration
}

// Pending returns the upcoming screens in order, without advancing.
func (r *Rotation) Pending() []Screen {
	ret := make([]Screen, r.queue.Len())
	for i := range ret {
		ret[i] = r.queue.At(i)
	}
	return ret
}

const logoBanner = `  ___                   ___ _         _
 / __|__ _ _ __ _ _ __ _/ __| |___  __| |__
| (__/ _' | '_ \ '_/ _' | (__| / _ \/ _| / /
 \___\__,_| .__/_| \__,_|\___|_\___/\__|_\_\
          |_|                              `

// Render produces the text content of s at the given time. readings maps a
// sensor name to its last value; a nil or empty map renders "--".
func Render(s Screen, now time.Time, readings map[string]float64) string {
	switch s {
	case Logo:
		return logoBanner
	case Time:
		return now.Format("15:04")
	case Date:
		return now.Format("Mon 02 Jan 2006")
	case Sensors:
		if len(readings) == 0 {
			return "--"
		}
		var buf strings.Builder
		for i, name := range slices.Sorted(maps.Keys(readings)) {
			if i > 0 {
				buf.WriteByte('\n')
			}
			fmt.Fprintf(&buf, "%s: %.1f", name, readings[name])
		}
		return buf.String()
	}
	return ""
}

// SkipLogo drops a pending logo screen. Used when the rotation is rebuilt
// after a config reload, since the logo belongs to startup only.
func (r *Rotation) SkipLogo() {
	if r.queue.Len() > 0 && r.queue.Front() == Logo {
		r.queue.PopFront()
	}
}
