package rest

import (
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type User struct {
	Service *application.UserService
}

func InitRestUser(app fiber.Router, service *application.UserService) User {
	rest := User{Service: service}

	group := app.Group("/users")
	group.Get("/", rest.List)
	group.Post("/", rest.Create)
	group.Put("/:id", rest.Update)
	group.Get("/:id/stats", rest.Stats)

	return rest
}

func (handler *User) List(c *fiber.Ctx) error {
	users, err := handler.Service.List(c.UserContext())
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Users retrieved", users)
}

func (handler *User) Create(c *fiber.Ctx) error {
	var request domain.CreateUserRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	user, err := handler.Service.Create(c.UserContext(), request)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Created(c, "User created", user)
}

func (handler *User) Update(c *fiber.Ctx) error {
	var request domain.UpdateUserRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	user, err := handler.Service.Update(c.UserContext(), c.Params("id"), request)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "User updated", user)
}

func (handler *User) Stats(c *fiber.Ctx) error {
	stats, err := handler.Service.Stats(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "User stats retrieved", stats)
}
