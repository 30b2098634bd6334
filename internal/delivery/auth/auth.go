package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"covid_slayer/internal/domain/user"
	errs "covid_slayer/internal/errors"
	"covid_slayer/internal/httpresponse"
	"covid_slayer/internal/middleware"
	authUC "covid_slayer/internal/usecase/auth"
	"covid_slayer/internal/utils"
)

// StatsReconciler settles finished games whose stats rollup was deferred.
type StatsReconciler interface {
	ReconcileStats(ctx context.Context, ownerID primitive.ObjectID) error
}

type AuthHandler struct {
	usecaseHandler *authUC.AuthUsecaseHandler
	reconciler     StatsReconciler
	cookieSecure   bool
	log            *zap.SugaredLogger
}

func NewAuthHandler(uc *authUC.AuthUsecaseHandler, reconciler StatsReconciler, cookieSecure bool, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		usecaseHandler: uc,
		reconciler:     reconciler,
		cookieSecure:   cookieSecure,
		log:            log,
	}
}

func (a *AuthHandler) setSessionCookie(w http.ResponseWriter, session authUC.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(a.usecaseHandler.SessionTTL() / time.Second),
		Secure:   a.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   a.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req user.RegisterRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		a.log.Warn("Register: malformed JSON: ", err)
		httpresponse.WriteMessage(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		writeValidation(w, err, a.log)
		return
	}

	created, session, err := a.usecaseHandler.RegisterUser(r.Context(), req)
	if err != nil {
		if errors.Is(err, errs.ErrUserExists) {
			httpresponse.WriteMessage(w, http.StatusBadRequest, "User already exists with this email")
			return
		}
		if v, ok := errs.AsValidation(err); ok {
			httpresponse.WriteValidationError(w, v)
			return
		}
		a.log.Error("Register: internal error: ", err)
		httpresponse.WriteMessage(w, http.StatusInternalServerError, "Server error during registration")
		return
	}

	a.setSessionCookie(w, session)
	httpresponse.WriteOK(w, http.StatusCreated, httpresponse.Payload{
		"token": session.Token,
		"user":  created.Profile(),
	})
}

func (a *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req user.LoginRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		a.log.Warn("Login: malformed JSON: ", err)
		httpresponse.WriteMessage(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		writeValidation(w, err, a.log)
		return
	}

	found, session, err := a.usecaseHandler.LoginUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			httpresponse.WriteMessage(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		a.log.Error("Login: internal error: ", err)
		httpresponse.WriteMessage(w, http.StatusInternalServerError, "Server error during login")
		return
	}

	if a.reconciler != nil {
		if err = a.reconciler.ReconcileStats(r.Context(), found.ID); err != nil {
			a.log.Warnf("Login: reconcile stats for %s: %v", found.ID.Hex(), err)
		}
	}

	a.setSessionCookie(w, session)
	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{
		"token": session.Token,
		"user":  found.Profile(),
	})
}

func (a *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}
	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{"user": current.Profile()})
}

func (a *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.usecaseHandler.LogoutUser(r.Context(), middleware.TokenFromRequest(r)); err != nil {
		a.log.Error("Logout: failed to revoke token: ", err)
		httpresponse.WriteMessage(w, http.StatusInternalServerError, "Server error during logout")
		return
	}
	a.clearSessionCookie(w)
	httpresponse.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

func writeValidation(w http.ResponseWriter, err error, log *zap.SugaredLogger) {
	if v, ok := errs.AsValidation(err); ok {
		httpresponse.WriteValidationError(w, v)
		return
	}
	log.Error("validation: ", err)
	httpresponse.WriteInternalErrorResponse(w)
}
