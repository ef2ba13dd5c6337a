package rest

import pkgError "github.com/AzielCF/az-crm/pkg/error"

var errConversationIDRequired = pkgError.ValidationError("conversationId: cannot be blank.")
