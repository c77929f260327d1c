package entities

import (
	"fmt"
	"time"
)

// Zone is an independently controlled irrigation circuit.
// Volumes use the same unit as rainfall (e.g. inches or mm), rates are volume per minute.
type Zone struct {
	ID                int           `json:"id"`
	Name              string        `json:"name"`
	WateringRate      float64       `json:"watering_rate"`      // volume per minute
	WeeklyRequirement float64       `json:"weekly_requirement"` // volume per period
	MinRun            time.Duration `json:"min_run"`
	MaxRun            time.Duration `json:"max_run"`
	DailyRequirement  float64       `json:"daily_requirement"` // 0 disables the daily override
}

func (z Zone) HasDailyOverride() bool { return z.DailyRequirement > 0 }

// RunLength converts a volume into a runtime at the zone's rate, floored to MinRun.
func (z Zone) RunLength(amount float64) time.Duration {
	if z.WateringRate <= 0 || amount <= 0 {
		return 0
	}
	d := time.Duration(amount / z.WateringRate * float64(time.Minute)).Round(time.Second)
	if d < z.MinRun {
		d = z.MinRun
	}
	return d
}

// Volume is the water delivered by runtime at the zone's rate.
func (z Zone) Volume(runtime time.Duration) float64 {
	return runtime.Seconds() / 60 * z.WateringRate
}

func (z Zone) String() string {
	if z.Name != "" {
		return fmt.Sprintf("%d(%s)", z.ID, z.Name)
	}
	return fmt.Sprintf("%d", z.ID)
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zipcode   string  `json:"zipcode"`
	Timezone  string  `json:"timezone"`
}

// Load resolves the configured timezone, falling back to the local zone when empty.
func (l Location) Load() (*time.Location, error) {
	if l.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(l.Timezone)
}
