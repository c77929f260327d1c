package persistence

import "time"

// dayRain is one day's rain total as stored by the weather station.
type dayRain struct {
	Day time.Time
	Sum float64
}

// sumRain adds the positive daily sums and returns the latest day whose sum exceeded
// minRain. days must be ordered by day.
func sumRain(days []dayRain, minRain float64) (float64, time.Time) {
	var (
		total float64
		last  time.Time
	)
	for _, d := range days {
		if d.Sum > 0 {
			total += d.Sum
		}
		if d.Sum > minRain && d.Day.After(last) {
			last = d.Day
		}
	}
	return total, last
}
