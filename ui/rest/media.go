package rest

import (
	"fmt"

	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/JarvisJ/plex-ai/pkg/utils"
	"github.com/JarvisJ/plex-ai/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

const thumbnailCacheControl = "public, max-age=86400"

type Media struct {
	Service domainMedia.IMediaUsecase
}

func InitRestMedia(app fiber.Router, service domainMedia.IMediaUsecase) Media {
	rest := Media{Service: service}
	group := app.Group("/media")
	group.Get("/servers", rest.ListServers)
	group.Get("/servers/:server/libraries", rest.ListLibraries)
	group.Get("/servers/:server/libraries/:key/items", rest.ListLibraryItems)
	group.Get("/servers/:server/thumbnail", rest.Thumbnail)
	group.Get("/thumbnail", rest.Thumbnail)

	group.Get("/watchlist", rest.Watchlist)
	group.Get("/servers/:server/watchlist/:rating_key", rest.WatchlistStatus)
	group.Post("/servers/:server/watchlist/:rating_key", rest.AddToWatchlist)
	group.Delete("/servers/:server/watchlist/:rating_key", rest.RemoveFromWatchlist)

	return rest
}

func (handler *Media) ListServers(c *fiber.Ctx) error {
	servers, err := handler.Service.GetServers(c.UserContext(), middleware.Session(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Servers retrieved",
		Results: servers,
	})
}

func (handler *Media) ListLibraries(c *fiber.Ctx) error {
	libraries, err := handler.Service.GetLibraries(c.UserContext(), middleware.Session(c), c.Params("server"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Libraries retrieved",
		Results: libraries,
	})
}

func (handler *Media) ListLibraryItems(c *fiber.Ctx) error {
	var request domainMedia.LibraryItemsRequest
	if err := c.QueryParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError(err.Error()))
	}
	request.ServerName = c.Params("server")
	request.LibraryKey = c.Params("key")

	page, err := handler.Service.GetLibraryItems(c.UserContext(), middleware.Session(c), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Library items retrieved",
		Results: page,
	})
}

// Thumbnail proxies poster art. The body is the image itself and X-Cache
// reports whether it came from the shared cache.
func (handler *Media) Thumbnail(c *fiber.Ctx) error {
	var request domainMedia.ThumbnailRequest
	if err := c.QueryParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError(err.Error()))
	}
	request.ServerName = c.Params("server", c.Query("server_name"))

	thumb, err := handler.Service.GetThumbnail(c.UserContext(), middleware.Session(c), request)
	utils.PanicIfNeeded(err)

	cacheStatus := "MISS"
	if thumb.CacheHit {
		cacheStatus = "HIT"
	}
	c.Set(fiber.HeaderContentType, thumb.ContentType)
	c.Set(fiber.HeaderCacheControl, thumbnailCacheControl)
	c.Set("X-Cache", cacheStatus)
	return c.Send(thumb.Data)
}

func (handler *Media) Watchlist(c *fiber.Ctx) error {
	items, err := handler.Service.GetWatchlist(c.UserContext(), middleware.Session(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Watchlist retrieved",
		Results: items,
	})
}

func (handler *Media) WatchlistStatus(c *fiber.Ctx) error {
	status, err := handler.Service.GetWatchlistStatus(c.UserContext(), middleware.Session(c), c.Params("server"), c.Params("rating_key"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Watchlist status retrieved",
		Results: status,
	})
}

func (handler *Media) AddToWatchlist(c *fiber.Ctx) error {
	status, err := handler.Service.AddToWatchlist(c.UserContext(), middleware.Session(c), c.Params("server"), c.Params("rating_key"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: fmt.Sprintf("%s added to watchlist", status.Title),
		Results: status,
	})
}

func (handler *Media) RemoveFromWatchlist(c *fiber.Ctx) error {
	status, err := handler.Service.RemoveFromWatchlist(c.UserContext(), middleware.Session(c), c.Params("server"), c.Params("rating_key"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: fmt.Sprintf("%s removed from watchlist", status.Title),
		Results: status,
	})
}
