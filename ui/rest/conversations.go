package rest

import (
	"strings"

	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/AzielCF/az-crm/validations"
	"github.com/gofiber/fiber/v2"
)

type Conversation struct {
	Service    *application.ConversationService
	Assignment *application.AssignmentEngine
}

type assignRequest struct {
	UserID string `json:"userId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func InitRestConversation(app fiber.Router, service *application.ConversationService, assignment *application.AssignmentEngine) Conversation {
	rest := Conversation{Service: service, Assignment: assignment}

	group := app.Group("/conversations")
	group.Get("/", rest.List)
	group.Post("/", rest.Create)
	group.Get("/stats/overview", rest.Stats)
	group.Get("/:id", rest.Get)
	group.Post("/:id/assign", rest.Assign)
	group.Post("/:id/auto-assign", rest.AutoAssign)
	group.Patch("/:id/status", rest.UpdateStatus)

	return rest
}

func (handler *Conversation) List(c *fiber.Ctx) error {
	page, limit := utils.PageParams(c, 20)
	filter := domain.ConversationFilter{
		Status:  domain.ConversationStatus(strings.ToUpper(c.Query("status"))),
		QueueID: c.Query("queueId"),
		UserID:  c.Query("userId"),
	}

	items, pagination, err := handler.Service.List(c.UserContext(), filter, page, limit)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Conversations retrieved", fiber.Map{
		"conversations": items,
		"pagination":    pagination,
	})
}

func (handler *Conversation) Get(c *fiber.Ctx) error {
	detail, err := handler.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Conversation retrieved", detail)
}

func (handler *Conversation) Create(c *fiber.Ctx) error {
	var request domain.CreateConversationRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}
	if err := validations.ValidateCreateConversation(c.UserContext(), request); err != nil {
		return utils.ResponseError(c, err)
	}

	conv, err := handler.Service.Create(c.UserContext(), application.CreateConversationInput{
		ContactID: request.ContactID,
		QueueID:   request.QueueID,
		Priority:  domain.Priority(strings.ToUpper(request.Priority)),
	})
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Created(c, "Conversation created", conv)
}

func (handler *Conversation) Assign(c *fiber.Ctx) error {
	var request assignRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	conv, err := handler.Assignment.Assign(c.UserContext(), c.Params("id"), request.UserID)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Conversation assigned", conv)
}

func (handler *Conversation) AutoAssign(c *fiber.Ctx) error {
	conv, err := handler.Assignment.AutoAssign(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Conversation auto-assigned", conv)
}

func (handler *Conversation) UpdateStatus(c *fiber.Ctx) error {
	var request statusRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	status := domain.ConversationStatus(strings.ToUpper(strings.TrimSpace(request.Status)))
	conv, err := handler.Service.UpdateStatus(c.UserContext(), c.Params("id"), status)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Conversation status updated", conv)
}

func (handler *Conversation) Stats(c *fiber.Ctx) error {
	stats, err := handler.Service.Stats(c.UserContext())
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Conversation stats retrieved", stats)
}
