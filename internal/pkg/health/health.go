package health

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const checkTimeout = 3 * time.Second

// Pinger checks one dependency.
type Pinger func(ctx context.Context) error

// Component is the health of one dependency.
type Component struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
}

// Report is the result of one check round.
type Report struct {
	Healthy    bool        `json:"healthy"`
	Components []Component `json:"components"`
	CheckedAt  time.Time   `json:"checked_at"`
}

type check struct {
	ping     Pinger
	required bool
}

// Checker pings the database and cache. Only required components make the
// report unhealthy; the engine keeps working without Redis.
type Checker struct {
	checks map[string]check
	now    func() time.Time
}

func NewChecker() *Checker {
	return &Checker{checks: map[string]check{}, now: time.Now}
}

// Add registers a dependency.
func (c *Checker) Add(name string, ping Pinger, required bool) *Checker {
	c.checks[name] = check{ping: ping, required: required}
	return c
}

// Check runs every registered ping with a short timeout.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	report := Report{Healthy: true, CheckedAt: c.now().UTC()}
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		chk := c.checks[name]
		comp := Component{Name: name, Healthy: true, Required: chk.required}
		if err := chk.ping(ctx); err != nil {
			comp.Healthy = false
			comp.Error = err.Error()
			if chk.required {
				report.Healthy = false
			}
			log.Warnf("[Health] %s check failed: %v", name, err)
		}
		report.Components = append(report.Components, comp)
	}
	return report
}

// Handler serves the report; 503 when a required component is down.
func (c *Checker) Handler() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		report := c.Check(ctx.UserContext())
		status := fiber.StatusOK
		if !report.Healthy {
			status = fiber.StatusServiceUnavailable
		}
		return ctx.Status(status).JSON(report)
	}
}

// DatabasePinger pings the SQL pool behind db.
func DatabasePinger(db *gorm.DB) Pinger {
	return func(ctx context.Context) error {
		if db == nil {
			return errors.New("database not initialized")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// RedisPinger pings client. A nil client reports as unavailable.
func RedisPinger(client redis.UniversalClient) Pinger {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis not configured")
		}
		return client.Ping(ctx).Err()
	}
}
