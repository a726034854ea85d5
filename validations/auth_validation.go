package validations

import (
	"context"

	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func ValidatePinCheck(ctx context.Context, pinID int64, code string) error {
	if err := validation.ValidateWithContext(ctx, pinID, validation.Required, validation.Min(int64(1))); err != nil {
		return pkgError.ValidationError("pin_id: " + err.Error())
	}
	if err := validation.ValidateWithContext(ctx, code, validation.Required); err != nil {
		return pkgError.ValidationError("code: " + err.Error())
	}
	return nil
}
