package rest

import (
	"strconv"

	domainAuth "github.com/JarvisJ/plex-ai/domains/auth"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/JarvisJ/plex-ai/pkg/utils"
	"github.com/JarvisJ/plex-ai/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

type Auth struct {
	Service domainAuth.IAuthUsecase
}

// InitRestAuth registers the PIN login flow. requireAuth guards /me.
func InitRestAuth(app fiber.Router, service domainAuth.IAuthUsecase, requireAuth fiber.Handler) Auth {
	rest := Auth{Service: service}
	group := app.Group("/auth")
	group.Post("/pin", rest.CreatePin)
	group.Get("/pin/:id", rest.CheckPin)
	group.Post("/token", rest.ExchangeToken)
	group.Get("/me", requireAuth, rest.Me)

	return rest
}

func pinParams(c *fiber.Ctx, id string) (int64, string) {
	pinID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("pin_id: must be an integer"))
	}
	return pinID, c.Query("code")
}

func (handler *Auth) CreatePin(c *fiber.Ctx) error {
	response, err := handler.Service.CreatePin(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "PIN created",
		Results: response,
	})
}

// CheckPin is polled by the frontend until the PIN is claimed.
func (handler *Auth) CheckPin(c *fiber.Ctx) error {
	pinID, code := pinParams(c, c.Params("id"))
	response, err := handler.Service.CheckPin(c.UserContext(), pinID, code)
	utils.PanicIfNeeded(err)

	message := "PIN not yet authenticated"
	if response.Authenticated {
		message = "PIN authenticated"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: response,
	})
}

// ExchangeToken is the strict form of CheckPin: an unclaimed PIN is a 400.
func (handler *Auth) ExchangeToken(c *fiber.Ctx) error {
	pinID, code := pinParams(c, c.Query("pin_id"))
	response, err := handler.Service.CheckPin(c.UserContext(), pinID, code)
	utils.PanicIfNeeded(err)
	if !response.Authenticated {
		utils.PanicIfNeeded(pkgError.ValidationError("PIN not yet authenticated"))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session token issued",
		Results: response,
	})
}

func (handler *Auth) Me(c *fiber.Ctx) error {
	session := middleware.Session(c)
	user, err := handler.Service.CurrentUser(c.UserContext(), session.PlexToken)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Current user retrieved",
		Results: user,
	})
}
