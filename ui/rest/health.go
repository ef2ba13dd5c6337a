package rest

import (
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

// SessionCounter reports the number of live real-time sessions.
type SessionCounter interface {
	SessionCount() int
}

type Health struct {
	Version   string
	StartedAt time.Time
	Sessions  SessionCounter
	now       func() time.Time
}

// InitRestHealth mounts /health on the root router, outside of the authenticated API group.
func InitRestHealth(app fiber.Router, version string, sessions SessionCounter) Health {
	handler := Health{
		Version:   version,
		StartedAt: time.Now(),
		Sessions:  sessions,
		now:       time.Now,
	}
	app.Get("/health", handler.GetStatus)
	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	now := h.now()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	body := fiber.Map{
		"status":      "ok",
		"timestamp":   now.UTC().Format(time.RFC3339),
		"uptime":      now.Sub(h.StartedAt).Seconds(),
		"uptimeHuman": strings.TrimSpace(humanize.RelTime(h.StartedAt, now, "", "")),
		"version":     h.Version,
		"memory":      humanize.Bytes(mem.Alloc),
		"goroutines":  runtime.NumGoroutine(),
	}
	if h.Sessions != nil {
		body["sessions"] = h.Sessions.SessionCount()
	}
	return c.JSON(body)
}
