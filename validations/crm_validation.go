package validations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AzielCF/az-crm/crm/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	roleValues = []any{string(domain.RoleAdmin), string(domain.RoleSupervisor), string(domain.RoleAgent)}

	priorityValues = []any{
		string(domain.PriorityLow), string(domain.PriorityMedium),
		string(domain.PriorityHigh), string(domain.PriorityUrgent),
	}

	messageTypeRule = validation.By(func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if _, ok := domain.ParseMessageType(s); !ok {
			return errors.New("must be one of text, image, document, audio, video")
		}
		return nil
	})
)

func nonBlankTags(value any) error {
	tags, _ := value.(*[]string)
	if tags == nil {
		return nil
	}
	for _, t := range *tags {
		if strings.TrimSpace(t) == "" {
			return errors.New("tags cannot contain blank values")
		}
	}
	return nil
}

// toValidationError flattens ozzo field errors into a single ValidationError
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return pkgError.ValidationError(fieldErrs.Error())
	}
	return pkgError.ValidationError(err.Error())
}

func ValidateCreateConnection(ctx context.Context, request domain.CreateConnectionRequest) error {
	return toValidationError(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&request.PhoneNumberID, validation.Required, is.Digit),
		validation.Field(&request.AccessToken, validation.Required),
		validation.Field(&request.VerifyToken, validation.Required),
		validation.Field(&request.WebhookURL, is.URL),
	))
}

func ValidateUpdateConnection(ctx context.Context, request domain.UpdateConnectionRequest) error {
	return toValidationError(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.NilOrNotEmpty),
		validation.Field(&request.PhoneNumberID, validation.NilOrNotEmpty, is.Digit),
		validation.Field(&request.AccessToken, validation.NilOrNotEmpty),
		validation.Field(&request.VerifyToken, validation.NilOrNotEmpty),
		validation.Field(&request.WebhookURL, is.URL),
	))
}

func ValidateUpdateContact(ctx context.Context, request domain.UpdateContactRequest) error {
	return toValidationError(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&request.Email, is.EmailFormat),
		validation.Field(&request.Tags, validation.By(nonBlankTags)),
	))
}

func ValidateCreateQueue(ctx context.Context, request domain.CreateQueueRequest) error {
	return toValidationError(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.Required, validation.Length(1, 80)),
		validation.Field(&request.Color, is.HexColor),
		validation.Field(&request.MaxConversations, validation.Min(0)),
	))
}

func ValidateUpdateQueue(ctx context.Context, request domain.UpdateQueueRequest) error {
	return toValidationError(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.NilOrNotEmpty, validation.Length(1, 80)),
		validation.Field(&request.Color, is.HexColor),
		validation.Field(&request.MaxConversations, validation.NilOrNotEmpty, validation.Min(1)),
	))
}

func ValidateCreateUser(ctx context.Context, request domain.CreateUserRequest) error {
	request.Role = strings.ToUpper(request.Role)
	return toValidationError(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&request.Email, validation.Required, is.EmailFormat),
		validation.Field(&request.Role, validation.In(roleValues...)),
		validation.Field(&request.Password, validation.Length(6, 72)),
	))
}

func ValidateUpdateUser(ctx context.Context, request domain.UpdateUserRequest) error {
	if request.Role != nil {
		role := strings.ToUpper(*request.Role)
		request.Role = &role
	}
	return toValidationError(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.NilOrNotEmpty),
		validation.Field(&request.Email, validation.NilOrNotEmpty, is.EmailFormat),
		validation.Field(&request.Role, validation.NilOrNotEmpty, validation.In(roleValues...)),
		validation.Field(&request.Password, validation.NilOrNotEmpty, validation.Length(6, 72)),
	))
}

func ValidateLogin(ctx context.Context, request domain.LoginRequest) error {
	return toValidationError(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Email, validation.Required, is.EmailFormat),
		validation.Field(&request.Password, validation.Required),
	))
}

func ValidateCreateConversation(ctx context.Context, request domain.CreateConversationRequest) error {
	request.Priority = strings.ToUpper(request.Priority)
	return toValidationError(validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ContactID, validation.Required),
		validation.Field(&request.QueueID, validation.NilOrNotEmpty),
		validation.Field(&request.Priority, validation.In(priorityValues...)),
	))
}

func ValidateSendMessage(ctx context.Context, request domain.SendMessageRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ConversationID, validation.Required),
		validation.Field(&request.MessageType, messageTypeRule),
		validation.Field(&request.UserID, validation.NilOrNotEmpty),
		validation.Field(&request.MediaURL, is.URL),
	)
	if err != nil {
		return toValidationError(err)
	}
	msgType, _ := domain.ParseMessageType(request.MessageType)
	if msgType == domain.MessageText && strings.TrimSpace(request.Content) == "" {
		return pkgError.ValidationError("content: cannot be blank.")
	}
	if msgType.IsMedia() && request.MediaURL == "" {
		return pkgError.ValidationError(fmt.Sprintf("mediaUrl: is required for %s messages.", strings.ToLower(string(msgType))))
	}
	return nil
}

func ValidateSendToPhone(ctx context.Context, request domain.SendToPhoneRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.To, validation.Required, validation.Length(10, 20)),
		validation.Field(&request.Message, validation.Required),
		validation.Field(&request.Type, messageTypeRule),
		validation.Field(&request.MediaURL, is.URL),
	)
	if err != nil {
		return toValidationError(err)
	}
	msgType, _ := domain.ParseMessageType(request.Type)
	if msgType.IsMedia() && request.MediaURL == "" {
		return pkgError.ValidationError("mediaUrl: is required for media messages.")
	}
	if msgType == domain.MessageDocument && request.Filename == "" {
		return pkgError.ValidationError("filename: is required for document messages.")
	}
	return nil
}
