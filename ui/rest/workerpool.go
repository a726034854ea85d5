package rest

import (
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/JarvisJ/plex-ai/pkg/turnpool"
	"github.com/JarvisJ/plex-ai/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type WorkerPool struct {
	Pool *turnpool.Pool
}

func InitRestWorkerPool(app fiber.Router, pool *turnpool.Pool) WorkerPool {
	rest := WorkerPool{Pool: pool}
	app.Get("/agent/pool/stats", rest.GetStats)

	return rest
}

// GetStats reports the queue depth and throughput of the chat turn workers.
func (handler *WorkerPool) GetStats(c *fiber.Ctx) error {
	if handler.Pool == nil {
		utils.PanicIfNeeded(pkgError.ServiceUnavailableError("turn worker pool not initialized"))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Worker pool stats retrieved",
		Results: handler.Pool.Stats(),
	})
}
