package observability

import (
	"database/sql"
	"fmt"

	"github.com/robfig/cron/v3"
)

// DBStatsCollector periodically copies connection pool statistics into gauges
type DBStatsCollector struct {
	cron    *cron.Cron
	db      *sql.DB
	metrics *Metrics
}

// NewDBStatsCollector schedules pool stats collection. schedule is a cron spec
// such as "@every 15s".
func NewDBStatsCollector(db *sql.DB, metrics *Metrics, schedule string, logger *Logger) (*DBStatsCollector, error) {
	c := &DBStatsCollector{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{logger}))),
		db:      db,
		metrics: metrics,
	}

	if _, err := c.cron.AddFunc(schedule, c.Collect); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}
	return c, nil
}

// Collect records the current pool statistics
func (c *DBStatsCollector) Collect() {
	c.metrics.RecordDBStats(c.db.Stats())
}

// Start begins scheduled collection
func (c *DBStatsCollector) Start() {
	c.Collect()
	c.cron.Start()
}

// Stop halts scheduled collection and waits for a running collection to finish
func (c *DBStatsCollector) Stop() {
	<-c.cron.Stop().Done()
}

// cronLogger adapts Logger to cron.Logger
type cronLogger struct {
	logger *Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
