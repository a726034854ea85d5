package usecase

import (
	"context"

	domainAuth "github.com/JarvisJ/plex-ai/domains/auth"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/JarvisJ/plex-ai/pkg/security"
	"github.com/JarvisJ/plex-ai/validations"
	"github.com/sirupsen/logrus"
)

type authService struct {
	identity domainAuth.IPlexIdentity
	tokens   *security.TokenIssuer
}

func NewAuthService(identity domainAuth.IPlexIdentity, tokens *security.TokenIssuer) domainAuth.IAuthUsecase {
	return &authService{identity: identity, tokens: tokens}
}

func (s *authService) CreatePin(ctx context.Context) (domainAuth.PinResponse, error) {
	pin, err := s.identity.CreatePin(ctx)
	if err != nil {
		return domainAuth.PinResponse{}, err
	}
	return domainAuth.PinResponse{
		ID:        pin.ID,
		Code:      pin.Code,
		AuthURL:   s.identity.AuthURL(pin.Code),
		ExpiresAt: pin.ExpiresAt,
	}, nil
}

// CheckPin reports authenticated once the user has claimed the PIN, and then
// issues the session token.
func (s *authService) CheckPin(ctx context.Context, pinID int64, code string) (domainAuth.PinCheckResponse, error) {
	if err := validations.ValidatePinCheck(ctx, pinID, code); err != nil {
		return domainAuth.PinCheckResponse{}, err
	}
	pin, err := s.identity.CheckPin(ctx, pinID, code)
	if err != nil {
		return domainAuth.PinCheckResponse{}, err
	}
	if pin.AuthToken == "" {
		return domainAuth.PinCheckResponse{Authenticated: false}, nil
	}

	user, err := s.CurrentUser(ctx, pin.AuthToken)
	if err != nil {
		return domainAuth.PinCheckResponse{}, err
	}
	token, err := s.tokens.Issue(pin.AuthToken, user.ID, user.Username)
	if err != nil {
		return domainAuth.PinCheckResponse{}, pkgError.InternalServerError("could not issue session token: " + err.Error())
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("[AUTH] user signed in")
	return domainAuth.PinCheckResponse{
		Authenticated: true,
		AccessToken:   token,
		TokenType:     "bearer",
		User:          &user,
	}, nil
}

func (s *authService) CurrentUser(ctx context.Context, plexToken string) (domainAuth.UserInfo, error) {
	if plexToken == "" {
		return domainAuth.UserInfo{}, pkgError.UnauthorizedError("missing plex token")
	}
	user, err := s.identity.User(ctx, plexToken)
	if err != nil {
		return domainAuth.UserInfo{}, err
	}
	clientID, err := s.identity.OwnedServerIdentifier(ctx, plexToken)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("[AUTH] could not resolve owned server")
	}
	user.ClientIdentifier = clientID
	return user, nil
}
