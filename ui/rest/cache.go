package rest

import (
	"fmt"

	coreconfig "github.com/JarvisJ/plex-ai/core/config"
	domainCache "github.com/JarvisJ/plex-ai/domains/cache"
	"github.com/JarvisJ/plex-ai/pkg/utils"
	"github.com/JarvisJ/plex-ai/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

type Cache struct {
	Service domainCache.ICacheUsecase
}

func InitRestCache(app fiber.Router, service domainCache.ICacheUsecase) Cache {
	rest := Cache{Service: service}
	app.Get("/media/cache/stats", rest.GetUserStats)
	app.Get("/media/cache/settings", rest.GetSettings)
	app.Delete("/media/cache", rest.ClearUserCache)

	return rest
}

func (handler *Cache) GetUserStats(c *fiber.Ctx) error {
	stats, err := handler.Service.UserStats(c.UserContext(), middleware.Session(c).UserID)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache stats retrieved",
		Results: stats,
	})
}

// ClearUserCache drops the caller's cached media. Shared thumbnails and
// stored conversations are kept.
func (handler *Cache) ClearUserCache(c *fiber.Ctx) error {
	deleted, err := handler.Service.ClearUserCache(c.UserContext(), middleware.Session(c).UserID)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: fmt.Sprintf("Cleared %d cache entries", deleted),
		Results: map[string]int64{"deleted": deleted},
	})
}

func (handler *Cache) GetSettings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings retrieved",
		Results: coreconfig.GetAllSettings(),
	})
}
