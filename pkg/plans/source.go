package plans

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Source defines how plans are loaded into a Catalog.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

type inMemSource struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewInMemSource returns an in-memory Source with a deep copy of the given plans.
// Panics if no plans are provided.
func NewInMemSource(plans ...Plan) Source {
	if len(plans) < 1 {
		panic("plans: at least one plan is required")
	}
	plansCopy := make(map[string]Plan, len(plans))
	for _, plan := range plans {
		plansCopy[plan.ID] = plan.clone()
	}
	return &inMemSource{plans: plansCopy}
}

// Load returns a copy of all plans held in memory.
func (s *inMemSource) Load(_ context.Context) (map[string]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plansCopy := make(map[string]Plan, len(s.plans))
	for id, plan := range s.plans {
		plansCopy[id] = plan.clone()
	}
	return plansCopy, nil
}

// yamlPlan is the on-disk representation of a catalog entry.
type yamlPlan struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Tier        Tier             `yaml:"tier"`
	Limits      map[string]int64 `yaml:"limits"`
	Features    []string         `yaml:"features"`
}

type yamlCatalog struct {
	Plans []yamlPlan `yaml:"plans"`
}

type yamlSource struct {
	open func() (io.ReadCloser, error)
}

// NewYAMLSource returns a Source reading the catalog from a YAML file:
//
//	plans:
//	  - id: pro_monthly
//	    tier: pro
//	    limits:
//	      active_surveys: 50
//	      completed_responses: 5000
//	      api_calls: -1
//	    features: [export, api_access]
func NewYAMLSource(path string) Source {
	return &yamlSource{open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

// NewYAMLReaderSource is like NewYAMLSource but reads from r once.
func NewYAMLReaderSource(r io.Reader) Source {
	return &yamlSource{open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil }}
}

func (s *yamlSource) Load(_ context.Context) (map[string]Plan, error) {
	rc, err := s.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var doc yamlCatalog
	if err := yaml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode plans yaml: %w", err)
	}

	result := make(map[string]Plan, len(doc.Plans))
	for _, yp := range doc.Plans {
		plan := Plan{
			ID:          yp.ID,
			Name:        yp.Name,
			Description: yp.Description,
			Tier:        yp.Tier,
			Limits:      make(map[Metric]int64, len(yp.Limits)),
			Features:    make([]Feature, 0, len(yp.Features)),
		}
		for k, v := range yp.Limits {
			m, err := ParseMetric(k)
			if err != nil {
				return nil, fmt.Errorf("plan %s: %w", yp.ID, err)
			}
			plan.Limits[m] = v
		}
		for _, f := range yp.Features {
			plan.Features = append(plan.Features, Feature(f))
		}
		if _, dup := result[plan.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %s", ErrInvalidPlanConfiguration, plan.ID)
		}
		result[plan.ID] = plan
	}
	return result, nil
}
