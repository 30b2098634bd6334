package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	userDomain "covid_slayer/internal/domain/user"
	errs "covid_slayer/internal/errors"
)

// bcrypt only hashes the first 72 bytes and rejects longer input.
const maxPasswordBytes = 72

type UserStorage interface {
	GetUserByEmail(ctx context.Context, email string) (*userDomain.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*userDomain.User, error)
	CreateUser(ctx context.Context, newUser *userDomain.User) error
	TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Session is an issued credential.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

type AuthUsecaseHandler struct {
	userStorage UserStorage
	denylist    TokenDenylist
	tokens      *TokenIssuer
	log         *zap.SugaredLogger
	now         func() time.Time
	hashCost    int
}

func NewAuthUsecaseHandler(u UserStorage, d TokenDenylist, tokens *TokenIssuer, log *zap.SugaredLogger) *AuthUsecaseHandler {
	return &AuthUsecaseHandler{
		userStorage: u,
		denylist:    d,
		tokens:      tokens,
		log:         log,
		now:         time.Now,
		hashCost:    bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func defaultAvatar(fullName string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(strings.Join(strings.Fields(fullName), " "))
}

func (a *AuthUsecaseHandler) RegisterUser(ctx context.Context, req userDomain.RegisterRequest) (*userDomain.User, Session, error) {
	if len(req.Password) > maxPasswordBytes {
		return nil, Session{}, errs.NewValidationError("password", "password must be at most 72 bytes long")
	}

	email := normalizeEmail(req.Email)
	if _, err := a.userStorage.GetUserByEmail(ctx, email); err == nil {
		return nil, Session{}, errs.ErrUserExists
	} else if !errors.Is(err, errs.ErrUserNotFound) {
		return nil, Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.hashCost)
	if err != nil {
		return nil, Session{}, fmt.Errorf("hash password: %w", err)
	}

	fullName := strings.TrimSpace(req.FullName)
	avatar := req.Avatar
	if avatar == "" {
		avatar = defaultAvatar(fullName)
	}

	now := a.now()
	newUser := &userDomain.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hash),
		Avatar:       avatar,
		CreatedAt:    now,
		LastLogin:    &now,
	}
	if err = a.userStorage.CreateUser(ctx, newUser); err != nil {
		return nil, Session{}, err
	}

	session, err := a.issue(newUser)
	if err != nil {
		return nil, Session{}, err
	}
	a.log.Infof("user %s registered", newUser.ID.Hex())
	return newUser, session, nil
}

func (a *AuthUsecaseHandler) LoginUser(ctx context.Context, email, password string) (*userDomain.User, Session, error) {
	found, err := a.userStorage.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, errs.ErrUserNotFound) {
		return nil, Session{}, errs.ErrInvalidCredentials
	} else if err != nil {
		return nil, Session{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)) != nil {
		return nil, Session{}, errs.ErrInvalidCredentials
	}

	now := a.now()
	if err = a.userStorage.TouchLastLogin(ctx, found.ID, now); err != nil {
		return nil, Session{}, err
	}
	found.LastLogin = &now

	session, err := a.issue(found)
	if err != nil {
		return nil, Session{}, err
	}
	return found, session, nil
}

func (a *AuthUsecaseHandler) issue(u *userDomain.User) (Session, error) {
	token, claims, err := a.tokens.Issue(u.ID.Hex(), u.FullName)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Authenticate resolves a bearer token to its user. Every failure is reported
// as errs.ErrUnauthorized or errs.ErrTokenRevoked so no detail leaks out.
func (a *AuthUsecaseHandler) Authenticate(ctx context.Context, token string) (*userDomain.User, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		a.log.Debugf("token rejected: %v", err)
		return nil, errs.ErrUnauthorized
	}

	revoked, err := a.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, errs.ErrTokenRevoked
	}

	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, errs.ErrUnauthorized
	}
	found, err := a.userStorage.GetUserByID(ctx, id)
	if errors.Is(err, errs.ErrUserNotFound) {
		return nil, errs.ErrUnauthorized
	}
	return found, err
}

// LogoutUser revokes token. Invalid or expired tokens need no revocation.
func (a *AuthUsecaseHandler) LogoutUser(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil
	}
	return a.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (a *AuthUsecaseHandler) SessionTTL() time.Duration {
	return a.tokens.TTL()
}
