package application

import "github.com/AzielCF/az-crm/crm/domain"

func conversationUpdated(conv *domain.Conversation) domain.Event {
	return domain.Event{
		Type: domain.EventConversationUpdated,
		Payload: map[string]any{
			"conversationId": conv.ID,
			"conversation":   conv,
		},
	}
}

func newMessage(msg *domain.Message) domain.Event {
	return domain.Event{
		Type: domain.EventNewMessage,
		Payload: map[string]any{
			"conversationId": msg.ConversationID,
			"message":        msg,
		},
	}
}

func messagesRead(conversationID, userID string, count int64) domain.Event {
	return domain.Event{
		Type: domain.EventMessageRead,
		Payload: map[string]any{
			"conversationId": conversationID,
			"userId":         userID,
			"count":          count,
		},
	}
}

func userStatusChanged(user *domain.User) domain.Event {
	return domain.Event{
		Type: domain.EventUserStatusChanged,
		Payload: map[string]any{
			"userId":   user.ID,
			"isActive": user.IsActive,
		},
	}
}
