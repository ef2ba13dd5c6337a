package rest

import (
	"github.com/AzielCF/az-crm/crm/application"
	"github.com/AzielCF/az-crm/crm/domain"
	"github.com/AzielCF/az-crm/infrastructure/whatsapp/cloudapi"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/AzielCF/az-crm/validations"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Whatsapp struct {
	Inbound     *application.InboundProcessor
	Outbound    *application.OutboundSender
	Connections *application.ConnectionService
}

func InitRestWhatsapp(app fiber.Router, inbound *application.InboundProcessor, outbound *application.OutboundSender, connections *application.ConnectionService) Whatsapp {
	rest := Whatsapp{Inbound: inbound, Outbound: outbound, Connections: connections}

	group := app.Group("/whatsapp")
	group.Get("/webhook", rest.VerifyWebhook)
	group.Post("/webhook", rest.ReceiveWebhook)
	group.Post("/send-message", rest.SendMessage)
	group.Get("/connections", rest.ListConnections)
	group.Post("/connections", rest.CreateConnection)
	group.Put("/connections/:id", rest.UpdateConnection)
	group.Delete("/connections/:id", rest.DeleteConnection)
	group.Post("/test-connection/:id", rest.TestConnection)
	group.Get("/media/:id", rest.Media)
	group.Get("/webhook-status", rest.WebhookStatus)

	return rest
}

// VerifyWebhook answers Meta's subscription handshake with the raw challenge.
func (handler *Whatsapp) VerifyWebhook(c *fiber.Ctx) error {
	expected, err := handler.Connections.VerifyToken(c.UserContext())
	if err != nil {
		logrus.WithError(err).Error("[WEBHOOK] Could not resolve verify token")
		return c.Status(fiber.StatusForbidden).SendString("Forbidden")
	}

	challenge, err := cloudapi.VerifyWebhook(c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"), expected)
	if err != nil {
		logrus.Warn("[WEBHOOK] Verification rejected")
		return c.Status(fiber.StatusForbidden).SendString("Forbidden")
	}

	logrus.Info("[WEBHOOK] Verified")
	return c.Status(fiber.StatusOK).SendString(challenge)
}

func (handler *Whatsapp) ReceiveWebhook(c *fiber.Ctx) error {
	// fasthttp reuses the body buffer once the handler returns
	raw := append([]byte(nil), c.Body()...)

	if err := handler.Inbound.HandleWebhook(c.UserContext(), raw); err != nil {
		logrus.WithError(err).Error("[WEBHOOK] Processing failed")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}
	return c.Status(fiber.StatusOK).SendString("OK")
}

func (handler *Whatsapp) SendMessage(c *fiber.Ctx) error {
	var request domain.SendToPhoneRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}
	if err := validations.ValidateSendToPhone(c.UserContext(), request); err != nil {
		return utils.ResponseError(c, err)
	}

	msgType, _ := domain.ParseMessageType(request.Type)
	result, err := handler.Outbound.SendToPhone(c.UserContext(), application.SendToPhoneInput{
		To:       request.To,
		Message:  request.Message,
		Type:     msgType,
		MediaURL: request.MediaURL,
		Filename: request.Filename,
		Caption:  request.Caption,
	})
	if err != nil && result != nil {
		return utils.ResponseErrorWith(c, err, result)
	}
	if err != nil {
		return utils.ResponseError(c, err)
	}

	return utils.Success(c, "Message sent", fiber.Map{
		"messageId":      result.Message.ID,
		"externalId":     result.Message.ExternalID,
		"gateway":        result.Message.GatewayResponse,
		"message":        result.Message,
		"conversationId": result.Conversation.ID,
		"isNew":          result.IsNew,
	})
}

func (handler *Whatsapp) ListConnections(c *fiber.Ctx) error {
	conns, err := handler.Connections.List(c.UserContext())
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Connections retrieved", conns)
}

func (handler *Whatsapp) CreateConnection(c *fiber.Ctx) error {
	var request domain.CreateConnectionRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	conn, err := handler.Connections.Create(c.UserContext(), request)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Created(c, "Connection created", conn)
}

func (handler *Whatsapp) UpdateConnection(c *fiber.Ctx) error {
	var request domain.UpdateConnectionRequest
	if err := utils.ParseBody(c, &request); err != nil {
		return utils.ResponseError(c, err)
	}

	conn, err := handler.Connections.Update(c.UserContext(), c.Params("id"), request)
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Connection updated", conn)
}

func (handler *Whatsapp) DeleteConnection(c *fiber.Ctx) error {
	if err := handler.Connections.Delete(c.UserContext(), c.Params("id")); err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Connection deleted", nil)
}

func (handler *Whatsapp) TestConnection(c *fiber.Ctx) error {
	conn, err := handler.Connections.Test(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Connection is working", conn.Status())
}

// Media streams a received attachment through the active connection credentials.
func (handler *Whatsapp) Media(c *fiber.Ctx) error {
	data, contentType, err := handler.Connections.Media(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.ResponseError(c, err)
	}
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Send(data)
}

func (handler *Whatsapp) WebhookStatus(c *fiber.Ctx) error {
	statuses, err := handler.Connections.WebhookStatus(c.UserContext())
	if err != nil {
		return utils.ResponseError(c, err)
	}
	return utils.Success(c, "Webhook status retrieved", fiber.Map{
		"connections": statuses,
		"configured":  len(statuses) > 0,
	})
}
