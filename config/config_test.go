package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "STORE_KEY", "SIM_TICK_INTERVAL", "SIM_STEP", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "logitrack_orders", cfg.StoreKey)
	assert.Equal(t, 2*time.Second, cfg.Simulation.TickInterval)
	assert.InDelta(t, 0.05, cfg.Simulation.Step, 1e-12)
	assert.InDelta(t, 0.001, cfg.Simulation.ArrivalThreshold, 1e-12)
	assert.InDelta(t, 24.7136, cfg.Simulation.DepotLat, 1e-12)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SIM_TICK_INTERVAL", "250ms")
	t.Setenv("SIM_STEP", "0.1")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")

	cfg := Load()

	require.Equal(t, DriverRedis, cfg.StoreDriver)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.TickInterval)
	assert.InDelta(t, 0.1, cfg.Simulation.Step, 1e-12)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}
