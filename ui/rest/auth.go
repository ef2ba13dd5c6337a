package rest

import (
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Auth struct {
	Service *application.AuthService
}

func InitRestAuth(app fiber.Router, service *application.AuthService) Auth {
	rest := Auth{Service: service}
	app.Post("/auth/login", rest.Login)
	return rest
}

func (handler *Auth) Login(c *fiber.Ctx) error {
	var request domain.LoginRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	result, err := handler.Service.Login(c.UserContext(), request)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Login success", result)
}
