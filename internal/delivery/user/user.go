package user

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	userDomain "covid_slayer/internal/domain/user"
	errs "covid_slayer/internal/errors"
	"covid_slayer/internal/httpresponse"
	"covid_slayer/internal/middleware"
	gameuc "covid_slayer/internal/usecase/game"
	useruc "covid_slayer/internal/usecase/user"
	"covid_slayer/internal/utils"
)

type UserHandler struct {
	userUC *useruc.UserUseCase
	gameUC *gameuc.GameUseCase
	log    *zap.SugaredLogger
}

func NewUserHandler(userUC *useruc.UserUseCase, gameUC *gameuc.GameUseCase, log *zap.SugaredLogger) *UserHandler {
	return &UserHandler{userUC: userUC, gameUC: gameUC, log: log}
}

func (u *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	profile, err := u.userUC.Profile(r.Context(), current.ID)
	if err != nil {
		u.writeError(w, err, "Server error fetching profile")
		return
	}
	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{"user": profile.Profile()})
}

func (u *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	var req userDomain.UpdateProfileRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		u.log.Warn("UpdateProfile: malformed JSON: ", err)
		httpresponse.WriteMessage(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		u.writeError(w, err, "Server error updating profile")
		return
	}

	updated, err := u.userUC.UpdateProfile(r.Context(), current.ID, req)
	if err != nil {
		u.writeError(w, err, "Server error updating profile")
		return
	}
	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{"user": updated.Profile()})
}

func (u *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	page, limit := queryInt(r, "page"), queryInt(r, "limit")
	entries, pagination, err := u.userUC.Leaderboard(r.Context(), page, limit)
	if err != nil {
		u.writeError(w, err, "Server error fetching leaderboard")
		return
	}
	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{
		"leaderboard": entries,
		"pagination":  pagination,
	})
}

func (u *UserHandler) RecentGames(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	games, err := u.gameUC.RecentGames(r.Context(), current.ID, queryInt(r, "limit"))
	if err != nil {
		u.writeError(w, err, "Server error fetching recent games")
		return
	}
	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{"games": games})
}

func (u *UserHandler) writeError(w http.ResponseWriter, err error, internalMsg string) {
	if v, ok := errs.AsValidation(err); ok {
		httpresponse.WriteValidationError(w, v)
		return
	}
	if errors.Is(err, errs.ErrUserNotFound) {
		httpresponse.WriteMessage(w, http.StatusNotFound, "User not found")
		return
	}
	u.log.Error(internalMsg, ": ", err)
	httpresponse.WriteMessage(w, http.StatusInternalServerError, internalMsg)
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
