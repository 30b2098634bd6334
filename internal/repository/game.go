package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"covid_slayer/internal/domain/game"
	errs "covid_slayer/internal/errors"
)

const (
	gamesCollection = "games"
	queryTimeout    = 5 * time.Second
)

type GameRepository struct {
	log   *zap.SugaredLogger
	mongo *mongo.Database
}

func NewGameRepository(log *zap.SugaredLogger, mongo *mongo.Database) *GameRepository {
	return &GameRepository{
		log:   log,
		mongo: mongo,
	}
}

func (g *GameRepository) collection() *mongo.Collection {
	return g.mongo.Collection(gamesCollection)
}

func (g *GameRepository) InsertGame(ctx context.Context, play *game.Game) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := g.collection().InsertOne(ctx, play)
	if err != nil {
		g.log.Errorf("failed to insert game: %v", err)
		return fmt.Errorf("insert game: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		play.ID = id
	}
	return nil
}

func (g *GameRepository) GetGameByOwner(ctx context.Context, gameID, ownerID primitive.ObjectID) (*game.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    gameID,
		"player": ownerID,
	}

	var found game.Game
	err := g.collection().FindOne(ctx, filter).Decode(&found)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrGameNotFound
	} else if err != nil {
		g.log.Error(err)
		return nil, fmt.Errorf("find game %s: %w", gameID.Hex(), err)
	}
	return &found, nil
}

// SaveGame replaces the stored document when its version still matches the
// one that was read, then advances the in-memory version.
func (g *GameRepository) SaveGame(ctx context.Context, play *game.Game) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	expected := play.Version
	play.Version = expected + 1

	filter := bson.M{
		"_id":     play.ID,
		"version": expected,
	}
	res, err := g.collection().ReplaceOne(ctx, filter, play)
	if err != nil {
		play.Version = expected
		g.log.Errorf("failed to save game %s: %v", play.ID.Hex(), err)
		return fmt.Errorf("replace game: %w", err)
	}
	if res.MatchedCount == 0 {
		play.Version = expected
		g.log.Warnf("version conflict on game %s (expected %d)", play.ID.Hex(), expected)
		return errs.ErrConcurrentUpdate
	}
	return nil
}

func (g *GameRepository) ListGamesByOwner(ctx context.Context, ownerID primitive.ObjectID, skip, limit int) ([]game.Game, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"player": ownerID}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"game_logs": 0})

	games, err := g.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	total, err := g.collection().CountDocuments(ctx, filter)
	if err != nil {
		g.log.Error(err)
		return nil, 0, fmt.Errorf("count games: %w", err)
	}
	return games, total, nil
}

func (g *GameRepository) RecentGamesByOwner(ctx context.Context, ownerID primitive.ObjectID, limit int) ([]game.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"game_logs": 0})

	return g.find(ctx, bson.M{"player": ownerID}, opts)
}

func (g *GameRepository) PendingStatsGames(ctx context.Context, ownerID primitive.ObjectID) ([]game.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"player":        ownerID,
		"status":        bson.M{"$in": []game.Status{game.StatusCompleted, game.StatusSurrendered}},
		"stats_applied": bson.M{"$ne": true},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "completed_at", Value: 1}}).
		SetProjection(bson.M{"game_logs": 0})

	return g.find(ctx, filter, opts)
}

func (g *GameRepository) MarkStatsApplied(ctx context.Context, gameID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"stats_applied": true}}
	if _, err := g.collection().UpdateByID(ctx, gameID, update); err != nil {
		g.log.Errorf("failed to mark stats applied for game %s: %v", gameID.Hex(), err)
		return fmt.Errorf("mark stats applied: %w", err)
	}
	return nil
}

type statsRow struct {
	game.StatsSummary `bson:",inline"`
	AvgDurationMillis *float64 `bson:"avg_duration_ms"`
}

func (g *GameRepository) StatsByOwner(ctx context.Context, ownerID primitive.ObjectID) (game.StatsSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	countWinner := func(w game.Winner) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$winner", w}}, 1, 0}}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"player": ownerID}}},
		{{Key: "$group", Value: bson.M{
			"_id":                nil,
			"total_games":        bson.M{"$sum": 1},
			"games_won":          countWinner(game.WinnerPlayer),
			"games_lost":         countWinner(game.WinnerMonster),
			"games_draw":         countWinner(game.WinnerTimeout),
			"total_damage_dealt": bson.M{"$sum": "$total_damage_dealt"},
			"total_damage_taken": bson.M{"$sum": "$total_damage_taken"},
			"avg_duration_ms":    bson.M{"$avg": bson.M{"$subtract": bson.A{"$completed_at", "$created_at"}}},
		}}},
	}

	cursor, err := g.collection().Aggregate(ctx, pipeline)
	if err != nil {
		g.log.Error(err)
		return game.StatsSummary{}, fmt.Errorf("aggregate stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []statsRow
	if err = cursor.All(ctx, &rows); err != nil {
		return game.StatsSummary{}, fmt.Errorf("decode stats: %w", err)
	}
	if len(rows) == 0 {
		return game.StatsSummary{}, nil
	}

	stats := rows[0].StatsSummary
	if rows[0].AvgDurationMillis != nil {
		stats.AvgGameDuration = int64(*rows[0].AvgDurationMillis/1000 + 0.5)
	}
	return stats, nil
}

func (g *GameRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]game.Game, error) {
	cursor, err := g.collection().Find(ctx, filter, opts)
	if err != nil {
		g.log.Error(err)
		return nil, fmt.Errorf("find games: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]game.Game, 0)
	for cursor.Next(ctx) {
		var play game.Game
		if err = cursor.Decode(&play); err != nil {
			g.log.Error(err)
			return result, fmt.Errorf("decode game: %w", err)
		}
		result = append(result, play)
	}
	return result, cursor.Err()
}

// EnsureIndexes creates the indexes the game queries rely on.
func (g *GameRepository) EnsureIndexes(ctx context.Context) error {
	_, err := g.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "player", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}
