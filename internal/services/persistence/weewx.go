package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

const weewxRainQuery = `SELECT dateTime, sum FROM archive_day_rain WHERE dateTime >= ? AND dateTime <= ? ORDER BY dateTime`

// WeeWX reads daily rain totals from a weeWX SQLite archive.
type WeeWX struct {
	db  *sql.DB
	log logx.Logger
}

func OpenWeeWX(path string, log logx.Logger) (*WeeWX, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open weewx db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping weewx db %s: %w", path, err)
	}
	return NewWeeWX(db, log), nil
}

func NewWeeWX(db *sql.DB, log logx.Logger) *WeeWX {
	return &WeeWX{db: db, log: log.With(logx.String("component", "weewx"))}
}

func (w *WeeWX) Rainfall(ctx context.Context, start, end time.Time, minRain float64) (float64, time.Time, error) {
	rows, err := w.db.QueryContext(ctx, weewxRainQuery, start.Unix(), end.Unix())
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("query archive_day_rain: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var days []dayRain
	for rows.Next() {
		var (
			ts  int64
			sum sql.NullFloat64
		)
		if err := rows.Scan(&ts, &sum); err != nil {
			return 0, time.Time{}, fmt.Errorf("scan archive_day_rain: %w", err)
		}
		days = append(days, dayRain{Day: time.Unix(ts, 0), Sum: sum.Float64})
	}
	if err := rows.Err(); err != nil {
		return 0, time.Time{}, err
	}
	total, last := sumRain(days, minRain)
	w.log.Debug("rain read", logx.Int("days", len(days)), logx.Float64("total", total))
	return total, last, nil
}

func (w *WeeWX) Close() error { return w.db.Close() }
