package game

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"covid_slayer/internal/domain/game"
	"covid_slayer/internal/domain/user"
	errs "covid_slayer/internal/errors"
	"covid_slayer/internal/middleware"
	gameuc "covid_slayer/internal/usecase/game"
)

type memStore struct {
	mu    sync.Mutex
	games map[primitive.ObjectID]game.Game
}

func (m *memStore) InsertGame(_ context.Context, play *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	play.ID = primitive.NewObjectID()
	m.games[play.ID] = *play
	return nil
}

func (m *memStore) GetGameByOwner(_ context.Context, gameID, ownerID primitive.ObjectID) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok || g.Player != ownerID {
		return nil, errs.ErrGameNotFound
	}
	g.GameLogs = append([]game.LogEntry(nil), g.GameLogs...)
	return &g, nil
}

func (m *memStore) SaveGame(_ context.Context, play *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.games[play.ID].Version != play.Version {
		return errs.ErrConcurrentUpdate
	}
	play.Version++
	m.games[play.ID] = *play
	return nil
}

func (m *memStore) ListGamesByOwner(context.Context, primitive.ObjectID, int, int) ([]game.Game, int64, error) {
	return nil, 0, nil
}

func (m *memStore) RecentGamesByOwner(context.Context, primitive.ObjectID, int) ([]game.Game, error) {
	return nil, nil
}

func (m *memStore) StatsByOwner(context.Context, primitive.ObjectID) (game.StatsSummary, error) {
	return game.StatsSummary{}, nil
}

func (m *memStore) PendingStatsGames(context.Context, primitive.ObjectID) ([]game.Game, error) {
	return nil, nil
}

func (m *memStore) MarkStatsApplied(context.Context, primitive.ObjectID) error { return nil }

type nopStats struct{}

func (nopStats) ApplyGameResult(context.Context, primitive.ObjectID, user.GameResult) error {
	return nil
}

type lowRolls struct{}

func (lowRolls) Intn(int) int { return 0 }

func newTestRouter(t *testing.T, player *user.User) (http.Handler, *Hub) {
	t.Helper()
	log := zap.NewNop().Sugar()
	uc := gameuc.NewGameUseCase(&memStore{games: map[primitive.ObjectID]game.Game{}}, nopStats{}, log, gameuc.WithSource(lowRolls{}))
	hub := NewHub(log)
	h := NewGameHandler(uc, hub, nil, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), player)))
		})
	})
	r.Post("/api/games", h.HandleNewGame)
	r.Get("/api/games/{id}", h.HandleGetGame)
	r.Post("/api/games/{id}/action", h.HandleAction)
	return r, hub
}

type response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  []errs.FieldError `json:"errors"`
	Game    struct {
		ID            string             `json:"id"`
		PlayerHealth  int                `json:"playerHealth"`
		MonsterHealth int                `json:"monsterHealth"`
		Status        game.Status        `json:"status"`
		Winner        *game.Winner       `json:"winner"`
		GameLogs      []game.LogEntry    `json:"gameLogs"`
		ActionResult  *game.ActionResult `json:"actionResult"`
	} `json:"game"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out response
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: bad JSON %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, out
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	player := &user.User{ID: primitive.NewObjectID(), FullName: "Jane Doe"}
	h, hub := newTestRouter(t, player)

	code, created := do(t, h, http.MethodPost, "/api/games", `{"gameTime":90}`)
	if code != http.StatusCreated || !created.Success {
		t.Fatalf("create: %d %+v", code, created)
	}
	if created.Game.Status != game.StatusActive || len(created.Game.GameLogs) != 1 {
		t.Fatalf("created game %+v", created.Game)
	}
	id := created.Game.ID

	sub := &client{send: make(chan []byte, 4), gameID: id}
	hub.register(sub)

	code, turn := do(t, h, http.MethodPost, "/api/games/"+id+"/action", `{"action":"attack","timeRemaining":80}`)
	if code != http.StatusOK {
		t.Fatalf("attack: %d %+v", code, turn)
	}
	if turn.Game.ActionResult == nil || turn.Game.ActionResult.Action != game.ActionAttack {
		t.Fatalf("action result %+v", turn.Game.ActionResult)
	}
	if turn.Game.PlayerHealth != 99 || turn.Game.MonsterHealth != 99 {
		t.Fatalf("health %d/%d", turn.Game.PlayerHealth, turn.Game.MonsterHealth)
	}

	select {
	case msg := <-sub.send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil || ev.Type != "turn" || ev.Game.PlayerHealth != 99 {
			t.Fatalf("stream event %s: %v", msg, err)
		}
	default:
		t.Fatal("turn was not published to the stream")
	}

	code, final := do(t, h, http.MethodPost, "/api/games/"+id+"/action", `{"action":"giveup","timeRemaining":70}`)
	if code != http.StatusOK || final.Game.Status != game.StatusSurrendered {
		t.Fatalf("giveup: %d %+v", code, final.Game)
	}
	if final.Game.Winner == nil || *final.Game.Winner != game.WinnerMonster {
		t.Fatalf("winner %v", final.Game.Winner)
	}

	code, again := do(t, h, http.MethodPost, "/api/games/"+id+"/action", `{"action":"attack","timeRemaining":60}`)
	if code != http.StatusNotFound || again.Message != "Active game not found" {
		t.Fatalf("action on finished game: %d %+v", code, again)
	}

	code, detail := do(t, h, http.MethodGet, "/api/games/"+id, "")
	if code != http.StatusOK || len(detail.Game.GameLogs) != 4 {
		t.Fatalf("detail: %d logs=%d", code, len(detail.Game.GameLogs))
	}
}

func TestActionValidation(t *testing.T) {
	player := &user.User{ID: primitive.NewObjectID(), FullName: "Jane"}
	h, _ := newTestRouter(t, player)
	_, created := do(t, h, http.MethodPost, "/api/games", "")

	code, body := do(t, h, http.MethodPost, "/api/games/"+created.Game.ID+"/action", `{"action":"dance"}`)
	if code != http.StatusBadRequest || body.Message != "Validation failed" || len(body.Errors) != 2 {
		t.Fatalf("invalid action: %d %+v", code, body)
	}

	code, _ = do(t, h, http.MethodPost, "/api/games", `{"gameTime":10}`)
	if code != http.StatusBadRequest {
		t.Fatalf("short game accepted: %d", code)
	}

	code, _ = do(t, h, http.MethodPost, "/api/games", `{"gameTime":`)
	if code != http.StatusBadRequest {
		t.Fatalf("malformed JSON: %d", code)
	}
}

func TestUnknownOrForeignGameIsNotFound(t *testing.T) {
	owner := &user.User{ID: primitive.NewObjectID(), FullName: "Owner"}
	h, _ := newTestRouter(t, owner)

	if code, _ := do(t, h, http.MethodGet, "/api/games/not-an-id", ""); code != http.StatusNotFound {
		t.Fatalf("bad id: %d", code)
	}
	if code, _ := do(t, h, http.MethodGet, "/api/games/"+primitive.NewObjectID().Hex(), ""); code != http.StatusNotFound {
		t.Fatalf("unknown id: %d", code)
	}
	code, body := do(t, h, http.MethodPost, "/api/games/"+primitive.NewObjectID().Hex()+"/action", `{"action":"heal","timeRemaining":5}`)
	if code != http.StatusNotFound || body.Message != "Active game not found" {
		t.Fatalf("action on unknown game: %d %+v", code, body)
	}
}

func TestHubDropsSlowSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	fast := &client{send: make(chan []byte, 4), gameID: "g1"}
	slow := &client{send: make(chan []byte, 1), gameID: "g1"}
	other := &client{send: make(chan []byte, 4), gameID: "g2"}
	for _, c := range []*client{fast, slow, other} {
		hub.register(c)
	}

	hub.Publish("g1", Event{Type: "turn"})
	hub.Publish("g1", Event{Type: "turn"})

	if len(fast.send) != 2 || len(other.send) != 0 {
		t.Fatalf("fast=%d other=%d", len(fast.send), len(other.send))
	}
	if hub.Subscribers("g1") != 1 {
		t.Fatalf("subscribers %d", hub.Subscribers("g1"))
	}
	<-slow.send
	if _, open := <-slow.send; open {
		t.Fatal("slow subscriber channel left open")
	}

	hub.unregister(fast)
	hub.unregister(fast)
	if hub.Subscribers("g1") != 0 {
		t.Fatal("unregister did not remove the subscriber")
	}
}
