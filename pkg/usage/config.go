package usage

import (
	"time"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Config controls which Store backs the tracker and how storage failures are
// retried.
type Config struct {
	Store          string        `env:"USAGE_STORE" envDefault:"postgres"` // postgres, redis or memory
	MaxRetries     uint64        `env:"USAGE_MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"USAGE_RETRY_BASE_DELAY" envDefault:"25ms"`
	RetryMaxDelay  time.Duration `env:"USAGE_RETRY_MAX_DELAY" envDefault:"500ms"`

	// Live counts for gauge metrics, each taking the team id as $1.
	// See PGGauge.
	ActiveSurveysQuery string `env:"USAGE_GAUGE_ACTIVE_SURVEYS_SQL"`
	ProjectsQuery      string `env:"USAGE_GAUGE_PROJECTS_SQL"`
}

// GaugeQueries maps each gauge metric to its configured count query. An
// empty query means the metric carries over between periods.
func (c Config) GaugeQueries() map[plans.Metric]string {
	return map[plans.Metric]string{
		plans.MetricActiveSurveys: c.ActiveSurveysQuery,
		plans.MetricProjects:      c.ProjectsQuery,
	}
}

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)
