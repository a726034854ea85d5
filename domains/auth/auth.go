package auth

import "context"

type PinResponse struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	AuthURL   string `json:"auth_url"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type UserInfo struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email,omitempty"`
	Thumb            string `json:"thumb,omitempty"`
	ClientIdentifier string `json:"client_identifier,omitempty"`
}

type PinCheckResponse struct {
	Authenticated bool      `json:"authenticated"`
	AccessToken   string    `json:"access_token,omitempty"`
	TokenType     string    `json:"token_type,omitempty"`
	User          *UserInfo `json:"user,omitempty"`
}

type IAuthUsecase interface {
	CreatePin(ctx context.Context) (PinResponse, error)
	CheckPin(ctx context.Context, pinID int64, code string) (PinCheckResponse, error)
	CurrentUser(ctx context.Context, plexToken string) (UserInfo, error)
}

// Pin is a plex.tv PIN. AuthToken is empty until the user claims it.
type Pin struct {
	ID        int64
	Code      string
	ExpiresAt string
	AuthToken string
}

// IPlexIdentity is the upstream identity provider.
type IPlexIdentity interface {
	CreatePin(ctx context.Context) (Pin, error)
	CheckPin(ctx context.Context, pinID int64, code string) (Pin, error)
	AuthURL(code string) string
	User(ctx context.Context, plexToken string) (UserInfo, error)
	OwnedServerIdentifier(ctx context.Context, plexToken string) (string, error)
}
