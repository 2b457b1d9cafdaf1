package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	DriverMemory   = "memory"
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	HTTPPort int

	StoreDriver string
	StoreKey    string

	SqlitePath string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	// PostgresMigrations is the migrations directory; empty resolves
	// migrations/postgres under the working directory.
	PostgresMigrations string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisChannel  string

	KafkaBrokers []string
	KafkaTopic   string

	Simulation Simulation
}

// Simulation tunes the delivery simulator. Coordinates are in degrees.
type Simulation struct {
	TickInterval     time.Duration
	Step             float64
	ArrivalThreshold float64
	DepotLat         float64
	DepotLng         float64
	RefLat           float64
	RefLng           float64
	Spread           float64
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "logitrack"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.HTTPPort = cast.ToInt(getOrReturnDefault("HTTP_PORT", 8080))

	cfg.StoreDriver = strings.ToLower(cast.ToString(getOrReturnDefault("STORE_DRIVER", DriverMemory)))
	cfg.StoreKey = cast.ToString(getOrReturnDefault("STORE_KEY", "logitrack_orders"))

	cfg.SqlitePath = cast.ToString(getOrReturnDefault("SQLITE_PATH", "logitrack.db"))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "logitrack"))
	cfg.PostgresMigrations = cast.ToString(getOrReturnDefault("POSTGRES_MIGRATIONS", ""))

	cfg.RedisHost = cast.ToString(getOrReturnDefault("REDIS_HOST", "localhost"))
	cfg.RedisPort = cast.ToString(getOrReturnDefault("REDIS_PORT", "6379"))
	cfg.RedisPassword = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", ""))
	cfg.RedisChannel = cast.ToString(getOrReturnDefault("REDIS_CHANNEL", "logitrack:changes"))

	cfg.KafkaBrokers = splitCSV(cast.ToString(getOrReturnDefault("KAFKA_BROKERS", "")))
	cfg.KafkaTopic = cast.ToString(getOrReturnDefault("KAFKA_TOPIC", "logitrack.orders"))

	cfg.Simulation = Simulation{
		TickInterval:     cast.ToDuration(getOrReturnDefault("SIM_TICK_INTERVAL", "2s")),
		Step:             cast.ToFloat64(getOrReturnDefault("SIM_STEP", 0.05)),
		ArrivalThreshold: cast.ToFloat64(getOrReturnDefault("SIM_ARRIVAL_THRESHOLD", 0.001)),
		DepotLat:         cast.ToFloat64(getOrReturnDefault("SIM_DEPOT_LAT", 24.7136)),
		DepotLng:         cast.ToFloat64(getOrReturnDefault("SIM_DEPOT_LNG", 46.6753)),
		RefLat:           cast.ToFloat64(getOrReturnDefault("SIM_REF_LAT", 24.7136)),
		RefLng:           cast.ToFloat64(getOrReturnDefault("SIM_REF_LNG", 46.6753)),
		Spread:           cast.ToFloat64(getOrReturnDefault("SIM_SPREAD", 0.1)),
	}

	return cfg
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
