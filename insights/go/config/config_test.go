package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.pollpulse.org/infra/insights/go/periods"
)

func TestInstanceConfigFromFile_PartialFile_DefaultsApplied(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.json")
	body := `{
	"data_store_config": {
		"datastore_type": "cockroachdb",
		"connection_string": "postgresql://root@127.0.0.1:26257/insights?sslmode=disable"
	},
	"engine_config": {
		"batch_size": 50
	}
}`
	require.NoError(t, os.WriteFile(filename, []byte(body), 0644))

	got, err := InstanceConfigFromFile(filename)
	require.NoError(t, err)
	require.Equal(t, CockroachDBDataStoreType, got.DataStoreConfig.DataStoreType)
	require.Equal(t, 50, got.EngineConfig.BatchSize)
	require.Equal(t, DefaultWorkerConcurrency, got.EngineConfig.WorkerConcurrency)
	require.Equal(t, DefaultMeanDeviationPercent, got.EngineConfig.MeanDeviationPercent)
	require.Equal(t, DefaultCountDeviationPercent, got.EngineConfig.CountDeviationPercent)
	require.Equal(t, periods.DefaultSpecs, got.EngineConfig.Periods)
	require.Equal(t, DefaultCorrelationThresholds, got.EngineConfig.CorrelationThresholds)
}

func TestInstanceConfigFromFile_MissingFile_ReturnsError(t *testing.T) {
	_, err := InstanceConfigFromFile(filepath.Join(t.TempDir(), "no-such-file.json"))
	require.Error(t, err)
}

func TestInstanceConfigFromFile_MissingConnectionString_ReturnsError(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.json")
	body := `{"data_store_config": {"datastore_type": "cockroachdb"}}`
	require.NoError(t, os.WriteFile(filename, []byte(body), 0644))

	_, err := InstanceConfigFromFile(filename)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection_string")
}

func TestInstanceConfigFromFile_UnknownDataStoreType_ReturnsError(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.json")
	body := `{"data_store_config": {"datastore_type": "mongodb"}}`
	require.NoError(t, os.WriteFile(filename, []byte(body), 0644))

	_, err := InstanceConfigFromFile(filename)
	require.Error(t, err)
}

func TestValidate_PeriodsNotIncreasing_ReturnsError(t *testing.T) {
	c := NewInstanceConfig()
	c.EngineConfig.Periods = []periods.Spec{
		{Name: periods.Days, Length: 7},
		{Name: periods.Week, Length: 3},
	}
	require.Error(t, c.Validate())
}

func TestValidate_UnboundedThresholdNotLast_ReturnsError(t *testing.T) {
	c := NewInstanceConfig()
	c.EngineConfig.CorrelationThresholds = []CorrelationThreshold{
		{MaxSampleCount: 0, MinAbsCorrelation: 0.3},
		{MaxSampleCount: 100, MinAbsCorrelation: 0.7},
	}
	require.Error(t, c.Validate())
}

func TestThresholdFor_DefaultLadder_BoundaryValues(t *testing.T) {
	e := NewInstanceConfig().EngineConfig
	require.Equal(t, 0.7, e.ThresholdFor(2))
	require.Equal(t, 0.7, e.ThresholdFor(99))
	require.Equal(t, 0.7, e.ThresholdFor(100))
	require.Equal(t, 0.5, e.ThresholdFor(101))
	require.Equal(t, 0.5, e.ThresholdFor(300))
	require.Equal(t, 0.3, e.ThresholdFor(301))
}

func TestThresholdFor_EmptyLadder_SurfacesNothing(t *testing.T) {
	e := EngineConfig{}
	require.Equal(t, 1.0, e.ThresholdFor(1000))
}
