package rest

import (
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Queue struct {
	Service    *application.QueueService
	Assignment *application.AssignmentEngine
}

type addMemberRequest struct {
	UserID string `json:"userId"`
}

type autoAssignRequest struct {
	ConversationID string `json:"conversationId"`
}

func InitRestQueue(app fiber.Router, service *application.QueueService, assignment *application.AssignmentEngine) Queue {
	rest := Queue{Service: service, Assignment: assignment}

	group := app.Group("/queues")
	group.Get("/", rest.List)
	group.Post("/", rest.Create)
	group.Put("/:id", rest.Update)
	group.Delete("/:id", rest.Delete)
	group.Post("/:id/users", rest.AddUser)
	group.Delete("/:id/users/:userId", rest.RemoveUser)
	group.Post("/:id/auto-assign", rest.AutoAssign)

	return rest
}

func (handler *Queue) List(c *fiber.Ctx) error {
	queues, err := handler.Service.List(c.UserContext())
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Queues retrieved", queues)
}

func (handler *Queue) Create(c *fiber.Ctx) error {
	var request domain.CreateQueueRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	queue, err := handler.Service.Create(c.UserContext(), request)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Created(c, "Queue created", queue)
}

func (handler *Queue) Update(c *fiber.Ctx) error {
	var request domain.UpdateQueueRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	queue, err := handler.Service.Update(c.UserContext(), c.Params("id"), request)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Queue updated", queue)
}

func (handler *Queue) Delete(c *fiber.Ctx) error {
	if err := handler.Service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Queue deleted", nil)
}

func (handler *Queue) AddUser(c *fiber.Ctx) error {
	var request addMemberRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	member, err := handler.Service.AddUser(c.UserContext(), c.Params("id"), request.UserID)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Created(c, "User added to queue", member)
}

func (handler *Queue) RemoveUser(c *fiber.Ctx) error {
	if err := handler.Service.RemoveUser(c.UserContext(), c.Params("id"), c.Params("userId")); err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "User removed from queue", nil)
}

// AutoAssign distributes waiting conversations of the queue, or only the one given in the body.
func (handler *Queue) AutoAssign(c *fiber.Ctx) error {
	var request autoAssignRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	assigned, err := handler.Assignment.AutoAssignQueue(c.UserContext(), c.Params("id"), request.ConversationID)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Conversations assigned", fiber.Map{
		"assigned":      len(assigned),
		"conversations": assigned,
	})
}
