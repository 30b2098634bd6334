package game

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"covid_slayer/internal/domain/game"
	"covid_slayer/internal/domain/user"
	errs "covid_slayer/internal/errors"
)

type GameStore interface {
	InsertGame(ctx context.Context, play *game.Game) error
	GetGameByOwner(ctx context.Context, gameID, ownerID primitive.ObjectID) (*game.Game, error)
	// SaveGame writes play only if its stored version still matches and bumps
	// the version; otherwise it returns errs.ErrConcurrentUpdate.
	SaveGame(ctx context.Context, play *game.Game) error
	ListGamesByOwner(ctx context.Context, ownerID primitive.ObjectID, skip, limit int) ([]game.Game, int64, error)
	RecentGamesByOwner(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]game.Game, error)
	StatsByOwner(ctx context.Context, ownerID primitive.ObjectID) (game.StatsSummary, error)
	PendingStatsGames(ctx context.Context, ownerID primitive.ObjectID) ([]game.Game, error)
	MarkStatsApplied(ctx context.Context, gameID primitive.ObjectID) error
}

type StatsStore interface {
	// ApplyGameResult must be idempotent per result.GameID.
	ApplyGameResult(ctx context.Context, userID primitive.ObjectID, result user.GameResult) error
}

type GameUseCase struct {
	store       GameStore
	stats       StatsStore
	log         *zap.SugaredLogger
	src         Source
	now         func() time.Time
	defaultTime int
	pageLimit   int
}

type Option func(*GameUseCase)

func WithSource(src Source) Option {
	return func(g *GameUseCase) { g.src = src }
}

func WithClock(now func() time.Time) Option {
	return func(g *GameUseCase) { g.now = now }
}

// WithDefaultGameTime sets the timer used when a create request omits one.
func WithDefaultGameTime(seconds int) Option {
	return func(g *GameUseCase) {
		if seconds >= game.MinGameTime && seconds <= game.MaxGameTime {
			g.defaultTime = seconds
		}
	}
}

func WithPageLimit(limit int) Option {
	return func(g *GameUseCase) {
		if limit > 0 {
			g.pageLimit = limit
		}
	}
}

func NewGameUseCase(store GameStore, stats StatsStore, log *zap.SugaredLogger, opts ...Option) *GameUseCase {
	g := &GameUseCase{
		store:       store,
		stats:       stats,
		log:         log,
		src:         DefaultSource,
		now:         time.Now,
		defaultTime: game.DefaultGameTime,
		pageLimit:   10,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GameUseCase) CreateGame(ctx context.Context, ownerID primitive.ObjectID, ownerName string, gameTime *int) (*game.Game, error) {
	seconds := g.defaultTime
	if gameTime != nil {
		seconds = *gameTime
	}
	if seconds < game.MinGameTime || seconds > game.MaxGameTime {
		return nil, errs.NewValidationError("gameTime", "Game time must be between 30 and 300 seconds")
	}

	play := game.New(ownerID, ownerName, seconds, g.now())
	if err := g.store.InsertGame(ctx, play); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}

	g.log.Infof("game %s created for user %s (%ds)", play.ID.Hex(), ownerID.Hex(), seconds)
	return play, nil
}

func (g *GameUseCase) GetGame(ctx context.Context, ownerID, gameID primitive.ObjectID) (*game.Game, error) {
	return g.store.GetGameByOwner(ctx, gameID, ownerID)
}

// ApplyAction runs one turn against an active game owned by ownerID.
func (g *GameUseCase) ApplyAction(ctx context.Context, ownerID, gameID primitive.ObjectID, action game.Action, timeRemaining int) (*game.Game, game.ActionResult, error) {
	play, err := g.store.GetGameByOwner(ctx, gameID, ownerID)
	if err != nil {
		return nil, game.ActionResult{}, err
	}
	if play.Status != game.StatusActive {
		return nil, game.ActionResult{}, errs.ErrGameNotActive
	}

	result := g.applyTurn(play, action, timeRemaining)

	if err = g.store.SaveGame(ctx, play); err != nil {
		return nil, game.ActionResult{}, fmt.Errorf("save game %s: %w", play.ID.Hex(), err)
	}

	if play.Status.Terminal() {
		if err = g.rollupStats(ctx, play); err != nil {
			// The game already carries its outcome; ReconcileStats picks the
			// rollup up again on the next login or profile read.
			g.log.Errorf("stats rollup for game %s deferred: %v", play.ID.Hex(), err)
		}
		g.log.Infof("game %s finished: status=%s winner=%s", play.ID.Hex(), play.Status, play.WinnerValue())
	}

	return play, result, nil
}

// applyTurn mutates play in memory: health, totals, status and the log.
func (g *GameUseCase) applyTurn(play *game.Game, action game.Action, clientRemaining int) game.ActionResult {
	now := g.now()
	play.TimeRemaining = min(max(clientRemaining, 0), play.ServerTimeRemaining(now))

	result := Resolve(g.src, action, play.PlayerHealth, play.MonsterHealth)
	if action == game.ActionGiveup {
		play.Finish(game.StatusSurrendered, game.WinnerMonster, now)
	} else {
		play.PlayerHealth = result.PlayerHealthAfter
		play.MonsterHealth = result.MonsterHealthAfter
		play.TotalDamageDealt += result.MonsterDamage
		play.TotalDamageTaken += result.PlayerDamage

		if end := Evaluate(play.PlayerHealth, play.MonsterHealth, play.TimeRemaining); end.Over {
			play.Finish(game.StatusCompleted, end.Winner, now)
		}
	}

	play.AppendLog(game.LogEntry{
		Action:             string(result.Action),
		PlayerDamage:       result.PlayerDamage,
		MonsterDamage:      result.MonsterDamage,
		HealingAmount:      result.HealingAmount,
		PlayerHealthAfter:  result.PlayerHealthAfter,
		MonsterHealthAfter: result.MonsterHealthAfter,
		Timestamp:          now,
		Description:        result.Description,
	})

	if play.Status.Terminal() {
		play.AppendLog(game.LogEntry{
			Action:             game.LogGameEnd,
			PlayerHealthAfter:  play.PlayerHealth,
			MonsterHealthAfter: play.MonsterHealth,
			Timestamp:          now,
			Description:        game.EndDescription(play.PlayerName, play.WinnerValue()),
		})
	}

	return result
}

func (g *GameUseCase) rollupStats(ctx context.Context, play *game.Game) error {
	if play.StatsApplied {
		return nil
	}
	result := user.GameResult{
		GameID:      play.ID,
		Won:         play.WinnerValue() == game.WinnerPlayer,
		DamageDealt: play.TotalDamageDealt,
		DamageTaken: play.TotalDamageTaken,
	}
	if err := g.stats.ApplyGameResult(ctx, play.Player, result); err != nil {
		return fmt.Errorf("apply game result: %w", err)
	}
	if err := g.store.MarkStatsApplied(ctx, play.ID); err != nil {
		return fmt.Errorf("mark stats applied: %w", err)
	}
	play.StatsApplied = true
	return nil
}

// ReconcileStats rolls every finished but not yet counted game of ownerID
// into the owner's statistics.
func (g *GameUseCase) ReconcileStats(ctx context.Context, ownerID primitive.ObjectID) error {
	pending, err := g.store.PendingStatsGames(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("find pending games: %w", err)
	}
	for i := range pending {
		if err = g.rollupStats(ctx, &pending[i]); err != nil {
			return err
		}
		g.log.Infof("reconciled stats for game %s", pending[i].ID.Hex())
	}
	return nil
}

func (g *GameUseCase) ListGames(ctx context.Context, ownerID primitive.ObjectID, page, limit int) ([]game.Game, game.Pagination, error) {
	page, limit = normalizePage(page, limit, g.pageLimit)
	games, total, err := g.store.ListGamesByOwner(ctx, ownerID, (page-1)*limit, limit)
	if err != nil {
		return nil, game.Pagination{}, err
	}
	return games, game.NewPagination(page, limit, total), nil
}

func (g *GameUseCase) RecentGames(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]game.Game, error) {
	if limit <= 0 {
		limit = 5
	}
	return g.store.RecentGamesByOwner(ctx, ownerID, limit)
}

func (g *GameUseCase) Stats(ctx context.Context, ownerID primitive.ObjectID) (game.StatsSummary, error) {
	stats, err := g.store.StatsByOwner(ctx, ownerID)
	if err != nil {
		return game.StatsSummary{}, err
	}
	stats.WinRate = user.ComputeWinRate(stats.TotalGames, stats.GamesWon)
	return stats, nil
}

func normalizePage(page, limit, fallback int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = fallback
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
