package domain

import pkgError "github.com/AzielCF/az-crm/pkg/error"

var (
	ErrContactNotFound      = pkgError.NotFoundError("contact not found")
	ErrConversationNotFound = pkgError.NotFoundError("conversation not found")
	ErrQueueNotFound        = pkgError.NotFoundError("queue not found")
	ErrUserNotFound         = pkgError.NotFoundError("user not found")
	ErrMessageNotFound      = pkgError.NotFoundError("message not found")
	ErrConnectionNotFound   = pkgError.NotFoundError("connection not found")

	// ErrNoActiveConnection se retorna cuando no hay credenciales activas para la Cloud API
	ErrNoActiveConnection = pkgError.NotFoundError("no active WhatsApp connection found")

	ErrDuplicateContact    = pkgError.ConflictError("contact with this phone already exists")
	ErrDuplicateQueue      = pkgError.ConflictError("queue with this name already exists")
	ErrDuplicateUser       = pkgError.ConflictError("user with this email already exists")
	ErrDuplicateMembership = pkgError.ConflictError("user is already a member of this queue")

	// ErrOpenConversationExists protege la regla de una conversación abierta por contacto
	ErrOpenConversationExists = pkgError.ConflictError("contact already has an open conversation")

	ErrContactBlocked   = pkgError.ValidationError("contact is blocked")
	ErrNoAvailableAgent = pkgError.NoAvailableAgentError("no available agent in queue")

	ErrInvalidCredentials = pkgError.AuthError("invalid email or password")
)
