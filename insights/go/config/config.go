// Package config contains the JSON instance configuration for the analytics
// engines.
package config

import (
	"encoding/json"
	"os"

	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/insights/go/periods"
)

const (
	// MemoryDataStoreType is an in-memory datastore, for tests and local
	// runs.
	MemoryDataStoreType DataStoreType = "memory"

	// CockroachDBDataStoreType is a CockroachDB datastore.
	CockroachDBDataStoreType DataStoreType = "cockroachdb"
)

// Default engine tuning values, applied where the instance file leaves a
// field unset.
const (
	DefaultBatchSize             = 1000
	DefaultWorkerConcurrency     = 5
	DefaultMeanDeviationPercent  = 50.0
	DefaultCountDeviationPercent = 30.0
)

// DefaultCorrelationThresholds is the stock sample-size-adaptive
// significance ladder: small samples need a strong coefficient to surface,
// large samples surface weaker ones.
var DefaultCorrelationThresholds = []CorrelationThreshold{
	{MaxSampleCount: 100, MinAbsCorrelation: 0.7},
	{MaxSampleCount: 300, MinAbsCorrelation: 0.5},
	{MaxSampleCount: 0, MinAbsCorrelation: 0.3},
}

// DataStoreType determines what type of datastore the engines use.
type DataStoreType string

// DataStoreConfig is the configuration of the datastore.
type DataStoreConfig struct {
	// DataStoreType is the type of datastore.
	DataStoreType DataStoreType `json:"datastore_type"`

	// ConnectionString is the database connection string, e.g.
	// "postgresql://root@127.0.0.1:26257/insights?sslmode=disable".
	// Unused for the memory datastore type.
	ConnectionString string `json:"connection_string"`
}

// CorrelationThreshold is one rung of the significance ladder.
type CorrelationThreshold struct {
	// MaxSampleCount is the inclusive sample count upper bound this rung
	// applies to. Zero means no upper bound, i.e. the final rung.
	MaxSampleCount int `json:"max_sample_count"`

	// MinAbsCorrelation is the exclusive minimum absolute coefficient a
	// pair needs to surface at this rung.
	MinAbsCorrelation float64 `json:"min_abs_correlation"`
}

// EngineConfig tunes the three engines.
type EngineConfig struct {
	// BatchSize is the maximum number of unsynced statistic records one
	// aggregation run rebuilds.
	BatchSize int `json:"batch_size"`

	// WorkerConcurrency bounds parallelism within one aggregation batch.
	WorkerConcurrency int `json:"worker_concurrency"`

	// MeanDeviationPercent is the absolute percentage deviation a scalar
	// question's window mean must exceed to surface.
	MeanDeviationPercent float64 `json:"mean_deviation_percent"`

	// CountDeviationPercent is the absolute percentage deviation the
	// started and completed counters must exceed to surface.
	CountDeviationPercent float64 `json:"count_deviation_percent"`

	// Periods are the comparison window definitions, shortest first.
	Periods []periods.Spec `json:"periods"`

	// CorrelationThresholds is the significance ladder, ordered by
	// ascending MaxSampleCount with the unbounded rung last.
	CorrelationThresholds []CorrelationThreshold `json:"correlation_thresholds"`
}

// ThresholdFor returns the minimum absolute coefficient required for a pair
// with n samples.
func (e EngineConfig) ThresholdFor(n int) float64 {
	for _, t := range e.CorrelationThresholds {
		if t.MaxSampleCount == 0 || n <= t.MaxSampleCount {
			return t.MinAbsCorrelation
		}
	}
	// An empty ladder surfaces nothing.
	return 1
}

// InstanceConfig is the full instance configuration, loaded from a JSON
// file.
type InstanceConfig struct {
	DataStoreConfig DataStoreConfig `json:"data_store_config"`
	EngineConfig    EngineConfig    `json:"engine_config"`
}

// InstanceConfigFromFile returns the deserialized JSON from the given file,
// with defaults applied, or an error.
func InstanceConfigFromFile(filename string) (*InstanceConfig, error) {
	var instanceConfig InstanceConfig

	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to read bytes from %q", filename)
	}
	if err := json.Unmarshal(b, &instanceConfig); err != nil {
		return nil, skerr.Wrapf(err, "Failed to parse instance config %q", filename)
	}
	instanceConfig.applyDefaults()
	if err := instanceConfig.Validate(); err != nil {
		return nil, skerr.Wrapf(err, "Invalid instance config %q", filename)
	}
	return &instanceConfig, nil
}

// NewInstanceConfig returns an InstanceConfig with the memory datastore and
// stock engine tuning.
func NewInstanceConfig() *InstanceConfig {
	ret := &InstanceConfig{
		DataStoreConfig: DataStoreConfig{
			DataStoreType: MemoryDataStoreType,
		},
	}
	ret.applyDefaults()
	return ret
}

func (c *InstanceConfig) applyDefaults() {
	if c.EngineConfig.BatchSize == 0 {
		c.EngineConfig.BatchSize = DefaultBatchSize
	}
	if c.EngineConfig.WorkerConcurrency == 0 {
		c.EngineConfig.WorkerConcurrency = DefaultWorkerConcurrency
	}
	if c.EngineConfig.MeanDeviationPercent == 0 {
		c.EngineConfig.MeanDeviationPercent = DefaultMeanDeviationPercent
	}
	if c.EngineConfig.CountDeviationPercent == 0 {
		c.EngineConfig.CountDeviationPercent = DefaultCountDeviationPercent
	}
	if len(c.EngineConfig.Periods) == 0 {
		c.EngineConfig.Periods = append([]periods.Spec{}, periods.DefaultSpecs...)
	}
	if len(c.EngineConfig.CorrelationThresholds) == 0 {
		c.EngineConfig.CorrelationThresholds = append([]CorrelationThreshold{}, DefaultCorrelationThresholds...)
	}
}

// Validate returns an error if the config is not usable.
func (c *InstanceConfig) Validate() error {
	switch c.DataStoreConfig.DataStoreType {
	case MemoryDataStoreType:
	case CockroachDBDataStoreType:
		if c.DataStoreConfig.ConnectionString == "" {
			return skerr.Fmt("A connection_string is required for datastore_type %q", c.DataStoreConfig.DataStoreType)
		}
	default:
		return skerr.Fmt("Unknown datastore_type: %q", c.DataStoreConfig.DataStoreType)
	}
	lastLength := 0
	for _, p := range c.EngineConfig.Periods {
		if p.Length <= lastLength {
			return skerr.Fmt("Periods must have strictly increasing lengths, got %d after %d", p.Length, lastLength)
		}
		lastLength = p.Length
	}
	lastMax := 0
	for i, t := range c.EngineConfig.CorrelationThresholds {
		unbounded := t.MaxSampleCount == 0
		if unbounded && i != len(c.EngineConfig.CorrelationThresholds)-1 {
			return skerr.Fmt("Only the last correlation threshold may be unbounded")
		}
		if !unbounded && t.MaxSampleCount <= lastMax {
			return skerr.Fmt("Correlation thresholds must have strictly increasing sample bounds, got %d after %d", t.MaxSampleCount, lastMax)
		}
		lastMax = t.MaxSampleCount
	}
	return nil
}
