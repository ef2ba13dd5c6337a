package domain

import "time"

// Connection guarda las credenciales de la Cloud API. Solo una puede estar activa.
type Connection struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	PhoneNumberID string     `json:"phoneNumberId"`
	AccessToken   string     `json:"-"`
	VerifyToken   string     `json:"-"`
	WebhookURL    string     `json:"webhookUrl,omitempty"`
	IsActive      bool       `json:"isActive"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ConnectionStatus es la vista pública usada por webhook-status
type ConnectionStatus struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	PhoneNumberID string     `json:"phoneNumberId"`
	WebhookURL    string     `json:"webhookUrl,omitempty"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty"`
	IsActive      bool       `json:"isActive"`
}

func (c *Connection) Status() ConnectionStatus {
	return ConnectionStatus{
		ID:            c.ID,
		Name:          c.Name,
		PhoneNumberID: c.PhoneNumberID,
		WebhookURL:    c.WebhookURL,
		LastSyncAt:    c.LastSyncAt,
		IsActive:      c.IsActive,
	}
}
