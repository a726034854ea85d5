package validations

import (
	"context"
	"strings"

	domainAgent "github.com/JarvisJ/plex-ai/domains/agent"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxMessageLength = 8000

func ValidateChatRequest(ctx context.Context, request domainAgent.ChatRequest) error {
	request.Message = strings.TrimSpace(request.Message)
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Message, validation.Required, validation.RuneLength(1, maxMessageLength)),
		validation.Field(&request.ServerName, validation.Required),
		validation.Field(&request.ConversationID, validation.Length(0, 128)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateConversationID(ctx context.Context, conversationID string) error {
	err := validation.ValidateWithContext(ctx, conversationID, validation.Required, validation.Length(1, 128))
	if err != nil {
		return pkgError.ValidationError("conversation_id: " + err.Error())
	}
	return nil
}
