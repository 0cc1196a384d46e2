package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration sourced from the environment.
type Server struct {
	Addr string

	// WebhookSecret keys the HMAC signature check on inbound payloads.
	// When empty and AllowUnsigned is false the webhook endpoint rejects
	// everything, which is the safe default for a misconfigured deploy.
	WebhookSecret string
	// AllowUnsigned permits payloads without a signature header. Demo and
	// platform-compatibility mode only; production keeps this false.
	AllowUnsigned bool

	// DatabaseURL enables the Postgres stores. Empty means in-memory.
	DatabaseURL string
	// RedisURL enables the distributed per-key lock. Empty means in-process.
	RedisURL string
	// KafkaBrokers enables the processed-event stream publisher.
	KafkaBrokers []string
	KafkaTopic   string

	// ActivityLogPath is the append-only human-readable audit trail.
	ActivityLogPath string

	// JWTSigningKey guards the admin read API. Empty leaves it open, which
	// is acceptable only behind a private network.
	JWTSigningKey string

	// KeyIncludesInstance widens the compliance key to
	// (account, user, course, instance). The upstream platform is ambiguous
	// about concurrent course instances, so this stays a deploy choice.
	KeyIncludesInstance bool

	// DeadlineDays is how long a learner has from enrollment. The upstream
	// compliance policy fixes this at 30 days.
	DeadlineDays int

	DispatchInterval time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("COMPLIANCE_GATEWAY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "compliance.events"
	}

	activityLog := os.Getenv("ACTIVITY_LOG")
	if activityLog == "" {
		activityLog = "logs/activity.log"
	}

	deadlineDays := 30
	if v := os.Getenv("DEADLINE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			deadlineDays = n
		}
	}

	dispatchInterval := time.Minute
	if v := os.Getenv("DISPATCH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			dispatchInterval = d
		}
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:                addr,
		WebhookSecret:       os.Getenv("ALM_WEBHOOK_SECRET"),
		AllowUnsigned:       os.Getenv("ALLOW_UNSIGNED") == "true",
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		KafkaBrokers:        brokers,
		KafkaTopic:          topic,
		ActivityLogPath:     activityLog,
		JWTSigningKey:       os.Getenv("JWT_SIGNING_KEY"),
		KeyIncludesInstance: os.Getenv("KEY_INCLUDES_INSTANCE") == "true",
		DeadlineDays:        deadlineDays,
		DispatchInterval:    dispatchInterval,
	}
}
