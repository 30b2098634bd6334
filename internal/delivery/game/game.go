package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"covid_slayer/internal/domain/game"
	errs "covid_slayer/internal/errors"
	"covid_slayer/internal/httpresponse"
	"covid_slayer/internal/middleware"
	gameuc "covid_slayer/internal/usecase/game"
	"covid_slayer/internal/utils"
)

type GameHandler struct {
	log      *zap.SugaredLogger
	gameUC   *gameuc.GameUseCase
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewGameHandler(gameUC *gameuc.GameUseCase, hub *Hub, origins []string, log *zap.SugaredLogger) *GameHandler {
	return &GameHandler{
		log:      log,
		gameUC:   gameUC,
		hub:      hub,
		upgrader: newUpgrader(origins),
	}
}

func (g *GameHandler) HandleNewGame(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	var req game.CreateGameRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		g.log.Warn("HandleNewGame: malformed JSON: ", err)
		httpresponse.WriteMessage(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		g.writeError(w, err, "Server error creating game")
		return
	}

	play, err := g.gameUC.CreateGame(r.Context(), current.ID, current.FullName, req.GameTime)
	if err != nil {
		g.writeError(w, err, "Server error creating game")
		return
	}

	httpresponse.WriteOK(w, http.StatusCreated, httpresponse.Payload{"game": play.Summary(game.SummaryLogLimit)})
}

func (g *GameHandler) HandleListGames(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	page, limit := queryInt(r, "page"), queryInt(r, "limit")
	games, pagination, err := g.gameUC.ListGames(r.Context(), current.ID, page, limit)
	if err != nil {
		g.writeError(w, err, "Server error fetching games")
		return
	}

	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{
		"games":      games,
		"pagination": pagination,
	})
}

func (g *GameHandler) HandleGetGame(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	gameID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpresponse.WriteMessage(w, http.StatusNotFound, "Game not found")
		return
	}

	play, err := g.gameUC.GetGame(r.Context(), current.ID, gameID)
	if err != nil {
		if errors.Is(err, errs.ErrGameNotFound) {
			httpresponse.WriteMessage(w, http.StatusNotFound, "Game not found")
			return
		}
		g.writeError(w, err, "Server error fetching game")
		return
	}

	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{"game": play.Detail()})
}

func (g *GameHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	var req game.ActionRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		g.log.Warn("HandleAction: malformed JSON: ", err)
		httpresponse.WriteMessage(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		g.writeError(w, err, "Server error performing action")
		return
	}
	action, ok := game.ParseAction(req.Action)
	if !ok {
		httpresponse.WriteValidationError(w, errs.NewValidationError("action", "Invalid action"))
		return
	}

	gameID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpresponse.WriteMessage(w, http.StatusNotFound, "Active game not found")
		return
	}

	play, result, err := g.gameUC.ApplyAction(r.Context(), current.ID, gameID, action, *req.TimeRemaining)
	if err != nil {
		g.writeError(w, err, "Server error performing action")
		return
	}

	summary := play.Summary(game.SummaryLogLimit)
	summary.ActionResult = &result
	g.hub.Publish(play.ID.Hex(), Event{Type: "turn", Game: summary})

	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{"game": summary})
}

func (g *GameHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	stats, err := g.gameUC.Stats(r.Context(), current.ID)
	if err != nil {
		g.writeError(w, err, "Server error fetching statistics")
		return
	}
	httpresponse.WriteOK(w, http.StatusOK, httpresponse.Payload{"stats": stats})
}

// HandleStream upgrades to a websocket that receives every turn applied to
// the caller's game, starting with the current state.
func (g *GameHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	current, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httpresponse.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	gameID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpresponse.WriteMessage(w, http.StatusNotFound, "Game not found")
		return
	}
	play, err := g.gameUC.GetGame(r.Context(), current.ID, gameID)
	if err != nil {
		if errors.Is(err, errs.ErrGameNotFound) {
			httpresponse.WriteMessage(w, http.StatusNotFound, "Game not found")
			return
		}
		g.writeError(w, err, "Server error fetching game")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("HandleStream: upgrade error: ", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer), gameID: play.ID.Hex()}
	if snapshot, err := json.Marshal(Event{Type: "state", Game: play.Summary(game.SummaryLogLimit)}); err == nil {
		c.send <- snapshot
	}
	g.hub.register(c)
	g.log.Infof("stream opened for game %s by user %s", c.gameID, current.ID.Hex())

	go c.writePump(g.log)
	c.readPump(g.hub)
}

// writeError maps use case errors onto HTTP statuses.
func (g *GameHandler) writeError(w http.ResponseWriter, err error, internalMsg string) {
	if v, ok := errs.AsValidation(err); ok {
		httpresponse.WriteValidationError(w, v)
		return
	}
	switch {
	case errors.Is(err, errs.ErrGameNotFound), errors.Is(err, errs.ErrGameNotActive):
		httpresponse.WriteMessage(w, http.StatusNotFound, "Active game not found")
	case errors.Is(err, errs.ErrConcurrentUpdate):
		httpresponse.WriteMessage(w, http.StatusConflict, "Game was updated by another request, please retry")
	default:
		g.log.Error(internalMsg, ": ", err)
		httpresponse.WriteMessage(w, http.StatusInternalServerError, internalMsg)
	}
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
