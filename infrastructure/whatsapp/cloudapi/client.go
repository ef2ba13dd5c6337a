package cloudapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"
	DefaultTimeout    = 20 * time.Second
)

// Config holds the Graph API endpoint settings shared by every connection.
type Config struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Client talks to the Cloud API on behalf of one phone number.
type Client struct {
	http          *resty.Client
	phoneNumberID string
	apiVersion    string
}

var _ domain.Gateway = (*Client)(nil)

// NewClient builds a client bound to phoneNumberID. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, phoneNumberID, accessToken string) *Client {
	cfg = cfg.withDefaults()

	var rc *resty.Client
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:          rc,
		phoneNumberID: phoneNumberID,
		apiVersion:    cfg.APIVersion,
	}
}

type graphErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// messageID extracts messages[0].id from a send response.
func messageID(raw map[string]any) string {
	messages, _ := raw["messages"].([]any)
	if len(messages) == 0 {
		return ""
	}
	first, _ := messages[0].(map[string]any)
	id, _ := first["id"].(string)
	return id
}

type mediaPayload struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type outboundMessage struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type,omitempty"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textPayload  `json:"text,omitempty"`
	Image            *mediaPayload `json:"image,omitempty"`
	Document         *mediaPayload `json:"document,omitempty"`
	Audio            *mediaPayload `json:"audio,omitempty"`
	Video            *mediaPayload `json:"video,omitempty"`
}

type textPayload struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

func (c *Client) messagesPath() string {
	return fmt.Sprintf("/%s/%s/messages", c.apiVersion, c.phoneNumberID)
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) (domain.SendResult, error) {
	to = utils.DigitsOnly(to)
	if to == "" {
		return domain.SendResult{}, pkgError.ValidationError("recipient phone is required")
	}

	return c.send(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textPayload{Body: body},
	})
}

// SendMedia sends an image, document, audio or video by public link.
func (c *Client) SendMedia(ctx context.Context, msg domain.MediaMessage) (domain.SendResult, error) {
	to := utils.DigitsOnly(msg.To)
	if to == "" {
		return domain.SendResult{}, pkgError.ValidationError("recipient phone is required")
	}
	if msg.URL == "" {
		return domain.SendResult{}, pkgError.ValidationError("media url is required")
	}

	out := outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
	}
	switch msg.Kind {
	case domain.MessageImage:
		out.Type = "image"
		out.Image = &mediaPayload{Link: msg.URL, Caption: msg.Caption}
	case domain.MessageDocument:
		out.Type = "document"
		filename := msg.Filename
		if filename == "" {
			filename = "document"
		}
		out.Document = &mediaPayload{Link: msg.URL, Caption: msg.Caption, Filename: filename}
	case domain.MessageAudio:
		// audio does not accept a caption
		out.Type = "audio"
		out.Audio = &mediaPayload{Link: msg.URL}
	case domain.MessageVideo:
		out.Type = "video"
		out.Video = &mediaPayload{Link: msg.URL, Caption: msg.Caption}
	default:
		return domain.SendResult{}, pkgError.ValidationError(fmt.Sprintf("unsupported media type %q", msg.Kind))
	}

	return c.send(ctx, out)
}

func (c *Client) send(ctx context.Context, body outboundMessage) (domain.SendResult, error) {
	var raw map[string]any

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&graphErrorBody{}).
		Post(c.messagesPath())
	if err != nil {
		return domain.SendResult{}, translateTransportError(err)
	}
	if resp.IsError() {
		return domain.SendResult{}, graphError(resp)
	}

	if err := decodeJSON(resp.Body(), &raw); err != nil {
		return domain.SendResult{}, &pkgError.GatewayError{Code: resp.StatusCode(), Message: "invalid response body: " + err.Error()}
	}

	id := messageID(raw)
	if id == "" {
		return domain.SendResult{}, &pkgError.GatewayError{Code: resp.StatusCode(), Message: "response carried no message id"}
	}

	logrus.Debugf("[GATEWAY] Sent %s to %s, wamid=%s", body.Type, body.To, id)
	return domain.SendResult{ExternalID: id, Raw: raw}, nil
}

// MarkAsRead flags an inbound message as read on the customer's device.
func (c *Client) MarkAsRead(ctx context.Context, externalID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"messaging_product": "whatsapp",
			"status":            "read",
			"message_id":        externalID,
		}).
		SetError(&graphErrorBody{}).
		Post(c.messagesPath())
	if err != nil {
		return translateTransportError(err)
	}
	if resp.IsError() {
		return graphError(resp)
	}
	return nil
}

// GetMediaURL resolves a media id from an inbound message to a short-lived download URL.
func (c *Client) GetMediaURL(ctx context.Context, mediaID string) (string, error) {
	var out struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&graphErrorBody{}).
		Get(fmt.Sprintf("/%s/%s", c.apiVersion, mediaID))
	if err != nil {
		return "", translateTransportError(err)
	}
	if resp.IsError() {
		return "", graphError(resp)
	}
	if out.URL == "" {
		return "", &pkgError.GatewayError{Code: resp.StatusCode(), Message: "media url not present in response"}
	}
	return out.URL, nil
}

// DownloadMedia fetches the bytes behind a URL returned by GetMediaURL.
func (c *Client) DownloadMedia(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, "", translateTransportError(err)
	}
	if resp.IsError() {
		return nil, "", graphError(resp)
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return resp.Body(), contentType, nil
}

// Ping checks that the credentials can read the phone number node.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "id,display_phone_number,verified_name").
		SetError(&graphErrorBody{}).
		Get(fmt.Sprintf("/%s/%s", c.apiVersion, c.phoneNumberID))
	if err != nil {
		return translateTransportError(err)
	}
	if resp.IsError() {
		return graphError(resp)
	}
	return nil
}

func graphError(resp *resty.Response) error {
	msg := http.StatusText(resp.StatusCode())
	if body, ok := resp.Error().(*graphErrorBody); ok && body != nil && body.Error.Message != "" {
		msg = body.Error.Message
	}
	logrus.Warnf("[GATEWAY] Cloud API answered %d: %s", resp.StatusCode(), msg)
	return &pkgError.GatewayError{Code: resp.StatusCode(), Message: msg}
}

func translateTransportError(err error) error {
	if isTimeout(err) {
		logrus.WithError(err).Warn("[GATEWAY] Cloud API request timed out")
		return pkgError.GatewayTimeoutError("whatsapp api request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &pkgError.GatewayError{Code: http.StatusBadGateway, Message: err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
