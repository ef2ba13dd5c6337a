package domain

// Requests recibidos por la API REST. Los campos puntero son opcionales en
// las actualizaciones parciales.

type CreateConnectionRequest struct {
	Name          string `json:"name"`
	PhoneNumberID string `json:"phoneNumberId"`
	AccessToken   string `json:"accessToken"`
	VerifyToken   string `json:"verifyToken"`
	WebhookURL    string `json:"webhookUrl"`
	IsActive      *bool  `json:"isActive"`
}

type UpdateConnectionRequest struct {
	Name          *string `json:"name"`
	PhoneNumberID *string `json:"phoneNumberId"`
	AccessToken   *string `json:"accessToken"`
	VerifyToken   *string `json:"verifyToken"`
	WebhookURL    *string `json:"webhookUrl"`
	IsActive      *bool   `json:"isActive"`
}

type UpdateContactRequest struct {
	Name  *string   `json:"name"`
	Email *string   `json:"email"`
	Notes *string   `json:"notes"`
	Tags  *[]string `json:"tags"`
}

type CreateQueueRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Color            string `json:"color"`
	Priority         int    `json:"priority"`
	IsActive         *bool  `json:"isActive"`
	AutoAssign       bool   `json:"autoAssign"`
	MaxConversations int    `json:"maxConversations"`
}

type UpdateQueueRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	Color            *string `json:"color"`
	Priority         *int    `json:"priority"`
	IsActive         *bool   `json:"isActive"`
	AutoAssign       *bool   `json:"autoAssign"`
	MaxConversations *int    `json:"maxConversations"`
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Password string `json:"password"`
	IsActive *bool  `json:"isActive"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
	IsActive *bool   `json:"isActive"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateConversationRequest struct {
	ContactID string  `json:"contactId"`
	QueueID   *string `json:"queueId"`
	Priority  string  `json:"priority"`
}

type SendMessageRequest struct {
	ConversationID string  `json:"conversationId"`
	Content        string  `json:"content"`
	UserID         *string `json:"userId"`
	MessageType    string  `json:"messageType"`
	MediaURL       string  `json:"mediaUrl"`
	Caption        string  `json:"caption"`
	Filename       string  `json:"filename"`
}

type SendToPhoneRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	MediaURL string `json:"mediaUrl"`
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}
