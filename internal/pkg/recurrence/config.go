package recurrence

import (
	"time"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/env"
)

type Config struct {
	Workers      int
	RunTimeout   time.Duration
	LockTTL      time.Duration
	ScheduleHour int
}

func LoadConfig() Config {
	cfg := Config{
		Workers:      env.GetIntEnv("RECURRENCE_WORKERS", 4),
		RunTimeout:   env.GetDurationEnv("RECURRENCE_RUN_TIMEOUT", 5*time.Minute),
		LockTTL:      env.GetDurationEnv("RECURRENCE_LOCK_TTL", 2*time.Minute),
		ScheduleHour: env.GetIntEnv("RECURRENCE_SCHEDULE_HOUR", 6),
	}
	return cfg.normalize()
}

func (c Config) normalize() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.ScheduleHour < 0 || c.ScheduleHour > 23 {
		c.ScheduleHour = 6
	}
	return c
}
