package rest

import (
	"github.com/JarvisJ/plex-ai/domains/health"
	"github.com/JarvisJ/plex-ai/pkg/metrics"
	"github.com/JarvisJ/plex-ai/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

type Health struct {
	Service health.IHealthUsecase
}

// InitRestHealth registers /health and the Prometheus /metrics endpoint.
// Both are unauthenticated.
func InitRestHealth(app fiber.Router, service health.IHealthUsecase) Health {
	handler := Health{Service: service}

	app.Get("/health", handler.GetStatus)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	report := h.Service.Check(c.UserContext())
	if report.Status != health.StatusOk {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "One or more dependencies are unhealthy",
			Results: report,
		})
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Healthy",
		Results: report,
	})
}
