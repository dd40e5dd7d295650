package aggregation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/air-quality-server/pkg/logging"
)

// Execer runs a statement, satisfied by *database.DB
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DailySummarizer rolls a day of hourly AQI into per-station min, max and mean
// together with the worst level reached
type DailySummarizer struct {
	db     Execer
	logger *zap.SugaredLogger
}

// NewDailySummarizer creates a new daily summarizer
func NewDailySummarizer(db Execer, logger *zap.SugaredLogger) *DailySummarizer {
	return &DailySummarizer{db: db, logger: logging.OrNop(logger)}
}

const dailySummaryQuery = `
	INSERT INTO aqi_daily (
		station_id, date, min_aqi, max_aqi, avg_aqi, hours, worst_level
	)
	SELECT
		station_id,
		$1::date AS date,
		MIN(aqi) AS min_aqi,
		MAX(aqi) AS max_aqi,
		AVG(aqi) AS avg_aqi,
		COUNT(aqi) AS hours,
		(ARRAY_AGG(level ORDER BY aqi DESC))[1] AS worst_level
	FROM
		aqi_hourly
	WHERE
		observed_at >= $1 AND observed_at < $2 AND aqi IS NOT NULL
	GROUP BY
		station_id
	ON CONFLICT (station_id, date) DO UPDATE
	SET
		min_aqi = EXCLUDED.min_aqi,
		max_aqi = EXCLUDED.max_aqi,
		avg_aqi = EXCLUDED.avg_aqi,
		hours = EXCLUDED.hours,
		worst_level = EXCLUDED.worst_level,
		updated_at = CURRENT_TIMESTAMP
`

// Summarize writes the summary of the day containing date
func (d *DailySummarizer) Summarize(ctx context.Context, date time.Time) error {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.AddDate(0, 0, 1)

	result, err := d.db.ExecContext(ctx, dailySummaryQuery, start, end)
	if err != nil {
		return fmt.Errorf("failed to summarize daily AQI: %w", err)
	}

	rows, _ := result.RowsAffected()
	d.logger.Infow("Daily AQI summary completed", "date", start.Format("2006-01-02"), "stations", rows)
	return nil
}

// SummarizePreviousDay summarizes the last full day before now
func (d *DailySummarizer) SummarizePreviousDay(ctx context.Context, now time.Time) error {
	return d.Summarize(ctx, now.AddDate(0, 0, -1))
}
