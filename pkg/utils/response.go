package utils

import (
	"errors"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// Success writes a 200 envelope.
func Success(c *fiber.Ctx, message string, results any) error {
	return c.JSON(ResponseData{
		Status:  fiber.StatusOK,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	})
}

// Created writes a 201 envelope.
func Created(c *fiber.Ctx, message string, results any) error {
	return c.Status(fiber.StatusCreated).JSON(ResponseData{
		Status:  fiber.StatusCreated,
		Code:    "SUCCESS",
		Message: message,
		Results: results,
	})
}

// ResponseError renders err with the status of its GenericError, or 500 when untyped.
func ResponseError(c *fiber.Ctx, err error) error {
	return ResponseErrorWith(c, err, nil)
}

// ResponseErrorWith is ResponseError carrying results, e.g. a message persisted as FAILED.
func ResponseErrorWith(c *fiber.Ctx, err error, results any) error {
	var generic pkgError.GenericError
	if errors.As(err, &generic) {
		return c.Status(generic.StatusCode()).JSON(ResponseData{
			Status:  generic.StatusCode(),
			Code:    generic.ErrCode(),
			Message: generic.Error(),
			Results: results,
		})
	}

	logrus.WithError(err).Errorf("[REST] Unhandled error on %s %s", c.Method(), c.Path())
	return c.Status(fiber.StatusInternalServerError).JSON(ResponseData{
		Status:  fiber.StatusInternalServerError,
		Code:    "INTERNAL_SERVER_ERROR",
		Message: err.Error(),
		Results: results,
	})
}

// ParseBody decodes the JSON body, reporting malformed input as a ValidationError.
func ParseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return pkgError.ValidationError("invalid request body: " + err.Error())
	}
	return nil
}
