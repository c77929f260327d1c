package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/apogeecmb/smartSprinkler/internal/model/messages"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

type InfluxOptions struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	Field       string
}

func (o InfluxOptions) client() (influxdb2.Client, error) {
	if o.URL == "" || o.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	return influxdb2.NewClient(o.URL, o.Token), nil
}

// ===================== Rainfall =====================

// InfluxRain reads rain from a measurement with one sample per reading, summed per day.
type InfluxRain struct {
	client      influxdb2.Client
	query       api.QueryAPI
	bucket      string
	measurement string
	field       string
	log         logx.Logger
}

// NewInfluxRain sums rain per UTC day.
func NewInfluxRain(o InfluxOptions, log logx.Logger) (*InfluxRain, error) {
	c, err := o.client()
	if err != nil {
		return nil, err
	}
	return &InfluxRain{
		client:      c,
		query:       c.QueryAPI(o.Org),
		bucket:      o.Bucket,
		measurement: o.Measurement,
		field:       o.Field,
		log:         log.With(logx.String("component", "influx_rain")),
	}, nil
}

func (r *InfluxRain) flux(start, end time.Time) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q and r._field == %q)
  |> aggregateWindow(every: 1d, fn: sum, createEmpty: false, timeSrc: "_start")
  |> keep(columns: ["_time", "_value"])`,
		r.bucket, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
		r.measurement, r.field)
}

func (r *InfluxRain) Rainfall(ctx context.Context, start, end time.Time, minRain float64) (float64, time.Time, error) {
	res, err := r.query.Query(ctx, r.flux(start, end))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("influx rain query: %w", err)
	}
	defer func() { _ = res.Close() }()

	var days []dayRain
	for res.Next() {
		rec := res.Record()
		v, ok := toFloat(rec.Value())
		if !ok {
			continue
		}
		days = append(days, dayRain{Day: rec.Time(), Sum: v})
	}
	if res.Err() != nil {
		return 0, time.Time{}, fmt.Errorf("influx rain read: %w", res.Err())
	}
	total, last := sumRain(days, minRain)
	return total, last, nil
}

func (r *InfluxRain) Close() error {
	r.client.Close()
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}

// ===================== Status =====================

// InfluxStatus writes one point per zone per cycle.
type InfluxStatus struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	log         logx.Logger
}

func NewInfluxStatus(o InfluxOptions, log logx.Logger) (*InfluxStatus, error) {
	c, err := o.client()
	if err != nil {
		return nil, err
	}
	m := o.Measurement
	if m == "" {
		m = "sprinkler_status"
	}
	return &InfluxStatus{
		client:      c,
		writeAPI:    c.WriteAPIBlocking(o.Org, o.Bucket),
		measurement: sanitizeMeasurement(m),
		log:         log.With(logx.String("component", "influx_status")),
	}, nil
}

func (s *InfluxStatus) Append(ctx context.Context, rec messages.StatusRecord) error {
	t := rec.Timestamp
	if t.IsZero() {
		t = time.Now()
	}
	runs := make(map[int]int64, len(rec.Schedule))
	for _, r := range rec.Schedule {
		runs[r.ZoneID] = r.DurationSec
	}

	points := make([]*write.Point, 0, len(rec.Zones)+1)
	for _, z := range rec.Zones {
		tags := map[string]string{
			"zone_id": fmt.Sprint(z.ZoneID),
			"status":  z.Status.String(),
		}
		fields := map[string]interface{}{
			"total_water":     z.TotalWater,
			"requirement":     z.Requirement,
			"amount_to_water": z.AmountToWater,
			"run_seconds":     runs[z.ZoneID],
			"cycle_id":        rec.CycleID,
		}
		if !z.LastWater.IsZero() {
			fields["last_water"] = z.LastWater.Unix()
		}
		points = append(points, influxdb2.NewPoint(s.measurement, tags, fields, t))
	}
	points = append(points, influxdb2.NewPoint(s.measurement+"_cycle",
		map[string]string{"enabled": fmt.Sprint(rec.Enabled)},
		map[string]interface{}{
			"cycle_id":  rec.CycleID,
			"fatal":     rec.Fatal,
			"runs":      len(rec.Schedule),
			"exception": strings.TrimSpace(rec.Exception),
		}, t))

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	s.log.Debug("status written", logx.Int("points", len(points)))
	return nil
}

func (s *InfluxStatus) Close() error {
	s.client.Close()
	return nil
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
