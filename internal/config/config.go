package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment driven setting of the API and worker
// binaries.
type Config struct {
	Env         string
	ServiceName string

	DBDriver string // "mysql" or "postgres"
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers    []string
	TopicBetPlaced  string
	TopicBetSettled string

	HTTPPort    string
	GRPCPort    string
	MetricsPort string
	GinMode     string

	SweepSpec    string
	SweepLockTTL time.Duration
	// SweepInline settles inside the API process instead of enqueueing
	// tasks for the worker.
	SweepInline bool
	// DispatchWindow is how long an enqueued settle/void task id stays
	// reserved for its match.
	DispatchWindow time.Duration

	WorkerConcurrency int
}

// LoadEnv reads .env from the working directory or its parent. Missing
// files are not an error; the process environment is used as is.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found in current directory, trying parent")
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using system environment variables")
		}
	}
}

func Load() Config {
	return Config{
		Env:         getEnv("ENV", "local"),
		ServiceName: getEnv("SERVICE_NAME", "betting-service"),

		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBDSN:    getEnv("DATABASE_URL", mysqlDSNFromParts()),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		TopicBetPlaced:  getEnv("KAFKA_TOPIC_BET_PLACED", "bet_placed"),
		TopicBetSettled: getEnv("KAFKA_TOPIC_BET_SETTLED", "bet_settled"),

		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "50051"),
		MetricsPort: getEnv("METRICS_PORT", "9095"),
		GinMode:     getEnv("GIN_MODE", "release"),

		SweepSpec:    getEnv("SETTLEMENT_SWEEP_SPEC", "@every 5m"),
		SweepLockTTL: getEnvDuration("SETTLEMENT_SWEEP_LOCK_TTL", 4*time.Minute),
		SweepInline:  getEnvBool("SETTLEMENT_SWEEP_INLINE", false),

		DispatchWindow: getEnvDuration("SETTLEMENT_DISPATCH_WINDOW", 5*time.Minute),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
	}
}

func mysqlDSNFromParts() string {
	return getEnv("DB_USER", "root") + ":" + getEnv("DB_PASSWORD", "") +
		"@tcp(" + getEnv("DB_HOST", "127.0.0.1") + ":" + getEnv("DB_PORT", "3306") + ")/" +
		getEnv("DB_NAME", "betting") + "?charset=utf8mb4&parseTime=True&loc=UTC"
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
