package error

import (
	"fmt"
	"net/http"
)

// GatewayError is a non-2xx answer from the WhatsApp Cloud API.
type GatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (err *GatewayError) Error() string {
	return fmt.Sprintf("whatsapp api error (%d): %s", err.Code, err.Message)
}

func (err *GatewayError) ErrCode() string {
	return "GATEWAY_ERROR"
}

func (err *GatewayError) StatusCode() int {
	return http.StatusBadGateway
}

// GatewayTimeoutError means the Cloud API did not answer within the configured timeout.
type GatewayTimeoutError string

func (err GatewayTimeoutError) Error() string {
	return string(err)
}

func (err GatewayTimeoutError) ErrCode() string {
	return "GATEWAY_TIMEOUT"
}

func (err GatewayTimeoutError) StatusCode() int {
	return http.StatusGatewayTimeout
}
