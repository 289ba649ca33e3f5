package identity

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// credential is what the password endpoints hand back on success.
type credential struct {
	LocalID string
	Email   string
	IDToken string
}

// passwordAPI is the subset of the identity toolkit REST API the provider calls.
type passwordAPI interface {
	SignUp(ctx context.Context, email, password string) (*credential, error)
	VerifyPassword(ctx context.Context, email, password string) (*credential, error)
	SendPasswordResetEmail(ctx context.Context, email string) error
}

// tokenAuthority is satisfied by *auth.Client.
type tokenAuthority interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// FirebaseProvider implements Provider with Firebase Authentication.
// Password flows go through the identity toolkit REST API (web API key); the
// returned ID tokens are verified and revoked with the Admin SDK auth client.
type FirebaseProvider struct {
	api    passwordAPI
	tokens tokenAuthority
	logger *zap.Logger
}

// NewFirebaseProvider creates a FirebaseProvider using the web API key for the
// password endpoints and authClient for token verification.
func NewFirebaseProvider(ctx context.Context, apiKey string, authClient *auth.Client, logger *zap.Logger) (*FirebaseProvider, error) {
	if apiKey == "" {
		return nil, errors.New("firebase web API key is required")
	}
	if authClient == nil {
		return nil, errors.New("firebase auth client is not initialized")
	}
	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("identitytoolkit.NewService: %w", err)
	}
	return newFirebaseProvider(&toolkitAPI{svc: svc}, authClient, logger), nil
}

func newFirebaseProvider(api passwordAPI, tokens tokenAuthority, logger *zap.Logger) *FirebaseProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirebaseProvider{api: api, tokens: tokens, logger: logger}
}

// SignUp creates an email/password account.
func (p *FirebaseProvider) SignUp(ctx context.Context, email, password string) (*User, error) {
	cred, err := p.api.SignUp(ctx, email, password)
	if err != nil {
		return nil, classify("sign up", err)
	}
	return p.verify(ctx, "sign up", cred)
}

// SignIn verifies the password and returns the signed-in user.
func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	cred, err := p.api.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, classify("sign in", err)
	}
	return p.verify(ctx, "sign in", cred)
}

// SignOut revokes the user's refresh tokens.
func (p *FirebaseProvider) SignOut(ctx context.Context, user *User) error {
	if user == nil {
		return nil
	}
	if err := p.tokens.RevokeRefreshTokens(ctx, user.ID); err != nil {
		return classify("sign out", err)
	}
	return nil
}

// SendPasswordReset asks the provider to mail a reset link. An unknown email is
// reported as success so callers cannot probe for registered addresses.
func (p *FirebaseProvider) SendPasswordReset(ctx context.Context, email string) error {
	err := p.api.SendPasswordResetEmail(ctx, email)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && errorCode(apiErr) == "EMAIL_NOT_FOUND" {
		p.logger.Debug("Password reset requested for unknown email")
		return nil
	}
	return classify("send password reset", err)
}

func (p *FirebaseProvider) verify(ctx context.Context, op string, cred *credential) (*User, error) {
	token, err := p.tokens.VerifyIDToken(ctx, cred.IDToken)
	if err != nil {
		return nil, &AuthError{Kind: KindInvalidCredentials, Op: op, Err: fmt.Errorf("verify ID token: %w", err)}
	}
	user := &User{ID: token.UID, Email: cred.Email}
	if email, ok := token.Claims["email"].(string); ok && email != "" {
		user.Email = email
	}
	p.logger.Info("Identity verified", zap.String("op", op), zap.String("user_id", user.ID))
	return user, nil
}

// toolkitAPI adapts identitytoolkit.Service to passwordAPI.
type toolkitAPI struct {
	svc *identitytoolkit.Service
}

func (t *toolkitAPI) SignUp(ctx context.Context, email, password string) (*credential, error) {
	resp, err := t.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &credential{LocalID: resp.LocalId, Email: resp.Email, IDToken: resp.IdToken}, nil
}

func (t *toolkitAPI) VerifyPassword(ctx context.Context, email, password string) (*credential, error) {
	resp, err := t.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &credential{LocalID: resp.LocalId, Email: resp.Email, IDToken: resp.IdToken}, nil
}

func (t *toolkitAPI) SendPasswordResetEmail(ctx context.Context, email string) error {
	_, err := t.svc.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		Email:       email,
		RequestType: "PASSWORD_RESET",
	}).Context(ctx).Do()
	return err
}
