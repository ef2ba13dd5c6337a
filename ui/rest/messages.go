package rest

import (
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/AzielCF/az-crm/validations"
	"github.com/gofiber/fiber/v2"
)

type Message struct {
	Ledger *application.Ledger
}

type markReadRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func InitRestMessage(app fiber.Router, ledger *application.Ledger) Message {
	rest := Message{Ledger: ledger}

	group := app.Group("/messages")
	group.Post("/send", rest.Send)
	group.Get("/conversation/:id", rest.ListByConversation)
	group.Post("/mark-read", rest.MarkRead)

	return rest
}

// Send records an OUTBOUND message after delivering it through the Cloud API.
// A gateway failure still answers with the FAILED message in results.
func (handler *Message) Send(c *fiber.Ctx) error {
	var request domain.SendMessageRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}
	if err := validations.ValidateSendMessage(c.UserContext(), request); err != nil {
		return utils.ResponseError(c, err)
	}

	msgType, _ := domain.ParseMessageType(request.MessageType)
	msg, err := handler.Ledger.Record(c.UserContext(), application.RecordInput{
		ConversationID: request.ConversationID,
		Direction:      domain.Outbound,
		Content:        request.Content,
		Type:           msgType,
		UserID:         request.UserID,
		MediaRef:       request.MediaURL,
		Caption:        request.Caption,
		Filename:       request.Filename,
	})
	if err != nil && msg != nil {
		return utils.ResponseErrorWith(c, err, msg)
	}
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Created(c, "Message sent", msg)
}

func (handler *Message) ListByConversation(c *fiber.Ctx) error {
	page, limit := utils.PageParams(c, 50)

	msgs, pagination, err := handler.Ledger.ListMessages(c.UserContext(), c.Params("id"), page, limit)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Messages retrieved", fiber.Map{
		"messages":   msgs,
		"pagination": pagination,
	})
}

func (handler *Message) MarkRead(c *fiber.Ctx) error {
	var request markReadRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}
	if request.ConversationID == "" {
		return utils.ResponseError(c, errConversationIDRequired)
	}

	count, err := handler.Ledger.MarkRead(c.UserContext(), request.ConversationID, request.UserID)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Messages marked as read", fiber.Map{"count": count})
}
