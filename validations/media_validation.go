package validations

import (
	"context"

	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MaxPageSize      = 500
	MaxThumbnailSize = 2000
)

func ValidateLibraryItems(ctx context.Context, request domainMedia.LibraryItemsRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ServerName, validation.Required),
		validation.Field(&request.LibraryKey, validation.Required),
		validation.Field(&request.Offset, validation.Min(0)),
		validation.Field(&request.Limit, validation.Min(0), validation.Max(MaxPageSize)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateThumbnail(ctx context.Context, request domainMedia.ThumbnailRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ServerName, validation.Required),
		validation.Field(&request.Path, validation.Required),
		validation.Field(&request.Width, validation.Min(0), validation.Max(MaxThumbnailSize)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateWatchlistTarget(ctx context.Context, serverName, ratingKey string) error {
	if err := validation.ValidateWithContext(ctx, serverName, validation.Required); err != nil {
		return pkgError.ValidationError("server_name: " + err.Error())
	}
	if err := validation.ValidateWithContext(ctx, ratingKey, validation.Required); err != nil {
		return pkgError.ValidationError("rating_key: " + err.Error())
	}
	return nil
}

func ValidateServerName(ctx context.Context, serverName string) error {
	if err := validation.ValidateWithContext(ctx, serverName, validation.Required, validation.Length(1, 255)); err != nil {
		return pkgError.ValidationError("server_name: " + err.Error())
	}
	return nil
}
