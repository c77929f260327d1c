package irrigation_controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sunrise "github.com/nathan-osman/go-sunrise"

	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
)

const (
	baseClock   = ""
	baseSunrise = "sunrise"
	baseSunset  = "sunset"
)

// Anchor is a desired run time: a clock time, or sunrise/sunset shifted by an offset.
type Anchor struct {
	Base   string
	Offset time.Duration // clock time of day when Base is empty
	Raw    string
}

// ParseAnchor accepts "HH:MM", "sunrise -HH:MM" or "sunset +HH:MM".
func ParseAnchor(spec string) (Anchor, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return Anchor{}, errors.New("empty run time")
	}
	if s[0] >= '0' && s[0] <= '9' {
		d, err := parseClock(s)
		if err != nil {
			return Anchor{}, fmt.Errorf("run time %q: %w", spec, err)
		}
		if d >= 24*time.Hour {
			return Anchor{}, fmt.Errorf("run time %q: past end of day", spec)
		}
		return Anchor{Base: baseClock, Offset: d, Raw: spec}, nil
	}

	i := strings.IndexAny(s, " \t+-")
	base, rest := s, ""
	if i >= 0 {
		base, rest = s[:i], strings.TrimSpace(s[i:])
	}
	if base != baseSunrise && base != baseSunset {
		return Anchor{}, fmt.Errorf("run time %q: unknown base %q", spec, base)
	}
	a := Anchor{Base: base, Raw: spec}
	if rest == "" {
		return a, nil
	}
	sign := time.Duration(1)
	switch rest[0] {
	case '-':
		sign = -1
		rest = rest[1:]
	case '+':
		rest = rest[1:]
	default:
		return Anchor{}, fmt.Errorf("run time %q: offset needs a sign", spec)
	}
	d, err := parseClock(strings.TrimSpace(rest))
	if err != nil {
		return Anchor{}, fmt.Errorf("run time %q: %w", spec, err)
	}
	a.Offset = sign * d
	return a, nil
}

func parseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 {
		return 0, fmt.Errorf("bad hours %q", hh)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minutes %q", mm)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// ParseAnchors keeps the valid specs in order and reports the rejected ones.
func ParseAnchors(specs []string) ([]Anchor, []error) {
	var (
		out  []Anchor
		errs []error
	)
	for _, s := range specs {
		a, err := ParseAnchor(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, a)
	}
	return out, errs
}

// SunFunc returns sunrise and sunset for a calendar day. Zero times mean the sun
// does not rise or set that day.
type SunFunc func(lat, lon float64, year int, month time.Month, day int) (rise, set time.Time)

// AnchorResolver turns anchors into concrete timestamps for a day at a location.
type AnchorResolver struct {
	anchors []Anchor
	loc     *time.Location
	lat     float64
	lon     float64
	now     func() time.Time
	sun     SunFunc
}

func NewAnchorResolver(anchors []Anchor, where entities.Location, tz *time.Location, now func() time.Time) *AnchorResolver {
	if now == nil {
		now = time.Now
	}
	if tz == nil {
		tz = time.Local
	}
	return &AnchorResolver{
		anchors: anchors,
		loc:     tz,
		lat:     where.Latitude,
		lon:     where.Longitude,
		now:     now,
		sun:     sunrise.SunriseSunset,
	}
}

// At returns the anchor's timestamp on day's calendar date.
func (r *AnchorResolver) At(a Anchor, day time.Time) (time.Time, bool) {
	d := day.In(r.loc)
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.loc)
	if a.Base == baseClock {
		h := int(a.Offset / time.Hour)
		m := int((a.Offset % time.Hour) / time.Minute)
		return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, r.loc), true
	}
	rise, set := r.sun(r.lat, r.lon, midnight.Year(), midnight.Month(), midnight.Day())
	base := rise
	if a.Base == baseSunset {
		base = set
	}
	if base.IsZero() {
		return time.Time{}, false
	}
	return base.In(r.loc).Add(a.Offset), true
}

// Resolve picks a still-future anchor on day. With AnchorFirst the earliest future anchor
// in list order wins; with AnchorLast the latest one does. When every anchor of the day
// has passed, the first resolvable anchor is moved one day (24h) later.
func (r *AnchorResolver) Resolve(day time.Time, policy entities.AnchorPolicy) (time.Time, error) {
	now := r.now()
	var (
		chosen   time.Time
		fallback time.Time
	)
	for _, a := range r.anchors {
		ts, ok := r.At(a, day)
		if !ok {
			continue
		}
		if fallback.IsZero() {
			fallback = ts
		}
		if !ts.After(now) {
			continue
		}
		if policy == entities.AnchorFirst {
			return ts, nil
		}
		if chosen.IsZero() || ts.After(chosen) {
			chosen = ts
		}
	}
	if !chosen.IsZero() {
		return chosen, nil
	}
	if fallback.IsZero() {
		return time.Time{}, errors.New("no resolvable run time")
	}
	return fallback.Add(24 * time.Hour), nil
}
