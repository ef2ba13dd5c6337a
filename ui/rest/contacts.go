package rest

import (
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Contact struct {
	Service *application.ContactService
}

type blockRequest struct {
	IsBlocked bool `json:"isBlocked"`
}

func InitRestContact(app fiber.Router, service *application.ContactService) Contact {
	rest := Contact{Service: service}

	group := app.Group("/contacts")
	group.Get("/", rest.List)
	group.Get("/:id", rest.Get)
	group.Put("/:id", rest.Update)
	group.Patch("/:id/block", rest.Block)

	return rest
}

func (handler *Contact) List(c *fiber.Ctx) error {
	page, limit := utils.PageParams(c, 20)

	contacts, pagination, err := handler.Service.List(c.UserContext(), c.Query("search"), page, limit)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Contacts retrieved", fiber.Map{
		"contacts":   contacts,
		"pagination": pagination,
	})
}

func (handler *Contact) Get(c *fiber.Ctx) error {
	detail, err := handler.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Contact retrieved", detail)
}

func (handler *Contact) Update(c *fiber.Ctx) error {
	var request domain.UpdateContactRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	contact, err := handler.Service.Update(c.UserContext(), c.Params("id"), request)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Contact updated", contact)
}

func (handler *Contact) Block(c *fiber.Ctx) error {
	var request blockRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	contact, err := handler.Service.SetBlocked(c.UserContext(), c.Params("id"), request.IsBlocked)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	message := "Contact unblocked"
	if contact.IsBlocked {
		message = "Contact blocked"
	}
	return utils.Success(c, message, contact)
}
