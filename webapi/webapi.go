// Package webapi provides the HTTP surface of the accrual service.
// It is organized into sub-packages per caller:
// - admission: funding relay
// - scheduler: automation poller
// - account: reads and the withdrawal gate
// - admin: administrator configuration
package webapi

import (
	"errors"
	"strings"

	"github.com/amirasaad/accrual/pkg/app"
	"github.com/amirasaad/accrual/pkg/middleware"
	accountweb "github.com/amirasaad/accrual/webapi/account"
	adminweb "github.com/amirasaad/accrual/webapi/admin"
	admissionweb "github.com/amirasaad/accrual/webapi/admission"
	"github.com/amirasaad/accrual/webapi/common"
	schedulerweb "github.com/amirasaad/accrual/webapi/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	cfg := a.Config

	fiberApp := fiber.New(fiber.Config{
		AppName: "accrual",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return common.ProblemDetailsJSON(c, fe.Message, err, fe.Code)
			}
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		fiberApp.Use(middleware.Metrics(a.Deps.Metrics))
		fiberApp.Get(cfg.Metrics.Path, adaptor.HTTPHandler(a.Deps.Metrics.Handler()))
	}

	// Uses X-Forwarded-For header when behind a proxy
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit.MaxRequests,
		Expiration: cfg.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				first, _, _ := strings.Cut(forwardedFor, ",")
				return strings.TrimSpace(first)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				errors.New("rate limit exceeded"),
				fiber.StatusTooManyRequests,
			)
		},
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if cfg.Env != "test" {
		fiberApp.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		}))
	}

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("accrual is running")
	})

	fiberApp.Get("/debug/routes", func(c *fiber.Ctx) error {
		var routes []fiber.Map
		for _, route := range fiberApp.GetRoutes(true) {
			routes = append(routes, fiber.Map{"method": route.Method, "path": route.Path})
		}
		return c.JSON(routes)
	})

	admissionweb.Routes(fiberApp, a.AdmissionService, a.AuthService, cfg)
	schedulerweb.Routes(fiberApp, a.SchedulerService, a.AuthService, cfg)
	accountweb.Routes(fiberApp, a.QueryService, a.WithdrawalService, a.AuthService, a.Audit, cfg)
	adminweb.Routes(fiberApp, a.SettingsService, a.AuthService, cfg)
	return fiberApp
}
