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

	"covid_slayer/internal/domain/user"
	errs "covid_slayer/internal/errors"
)

const usersCollection = "users"

type MongoUserStorage struct {
	log   *zap.SugaredLogger
	mongo *mongo.Database
}

func NewMongoUserStorage(log *zap.SugaredLogger, mongo *mongo.Database) *MongoUserStorage {
	return &MongoUserStorage{log: log, mongo: mongo}
}

func (m *MongoUserStorage) collection() *mongo.Collection {
	return m.mongo.Collection(usersCollection)
}

func (m *MongoUserStorage) findOne(ctx context.Context, filter bson.M) (*user.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var result user.User
	err := m.collection().FindOne(ctx, filter).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrUserNotFound
	} else if err != nil {
		m.log.Error(err)
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &result, nil
}

func (m *MongoUserStorage) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return m.findOne(ctx, bson.M{"email": email})
}

func (m *MongoUserStorage) GetUserByID(ctx context.Context, id primitive.ObjectID) (*user.User, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoUserStorage) CreateUser(ctx context.Context, newUser *user.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.collection().InsertOne(ctx, newUser)
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrUserExists
	} else if err != nil {
		m.log.Error(err)
		return fmt.Errorf("insert user: %w", err)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		newUser.ID = id
	}
	return nil
}

func (m *MongoUserStorage) TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.collection().UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_login": at}})
	if err != nil {
		m.log.Error(err)
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (m *MongoUserStorage) UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName, avatar string) (*user.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{}
	if fullName != "" {
		set["full_name"] = fullName
	}
	if avatar != "" {
		set["avatar"] = avatar
	}
	if len(set) == 0 {
		return m.GetUserByID(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated user.User
	err := m.collection().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrUserNotFound
	} else if err != nil {
		m.log.Error(err)
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &updated, nil
}

// ApplyGameResult folds a finished game into the lifetime counters. The
// applied_games guard makes a repeated call for the same game a no-op; it keeps
// only the most recent user.AppliedGamesWindow ids.
func (m *MongoUserStorage) ApplyGameResult(ctx context.Context, userID primitive.ObjectID, result user.GameResult) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	won := 0
	if result.Won {
		won = 1
	}
	ifNull := func(field string, fallback any) bson.M {
		return bson.M{"$ifNull": bson.A{"$" + field, fallback}}
	}

	filter := bson.M{
		"_id":           userID,
		"applied_games": bson.M{"$ne": result.GameID},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"games_played":       bson.M{"$add": bson.A{ifNull("games_played", 0), 1}},
			"games_won":          bson.M{"$add": bson.A{ifNull("games_won", 0), won}},
			"total_damage_dealt": bson.M{"$add": bson.A{ifNull("total_damage_dealt", 0), result.DamageDealt}},
			"total_damage_taken": bson.M{"$add": bson.A{ifNull("total_damage_taken", 0), result.DamageTaken}},
			"applied_games":      bson.M{"$slice": bson.A{bson.M{"$concatArrays": bson.A{ifNull("applied_games", bson.A{}), bson.A{result.GameID}}}, -user.AppliedGamesWindow}},
		}}},
		{{Key: "$set", Value: bson.M{"win_rate": winRateExpr("$games_won", "$games_played")}}},
	}

	res, err := m.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		m.log.Errorf("failed to apply game %s to user %s: %v", result.GameID.Hex(), userID.Hex(), err)
		return fmt.Errorf("apply game result: %w", err)
	}
	if res.MatchedCount == 0 {
		m.log.Infof("game %s already counted for user %s", result.GameID.Hex(), userID.Hex())
	}
	return nil
}

// winRateExpr rounds won/played to a whole percent, half up, in integer
// terms: trunc((won*200 + played) / (played*2)). It matches user.ComputeWinRate.
func winRateExpr(won, played any) bson.M {
	return bson.M{"$trunc": bson.M{"$divide": bson.A{
		bson.M{"$add": bson.A{bson.M{"$multiply": bson.A{won, 200}}, played}},
		bson.M{"$multiply": bson.A{played, 2}},
	}}}
}

func (m *MongoUserStorage) Leaderboard(ctx context.Context, skip, limit int) ([]user.LeaderboardEntry, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"games_played": bson.M{"$gt": 0}}
	opts := options.Find().
		SetSort(bson.D{{Key: "win_rate", Value: -1}, {Key: "games_won", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetProjection(bson.M{
			"full_name":          1,
			"avatar":             1,
			"games_played":       1,
			"games_won":          1,
			"win_rate":           1,
			"total_damage_dealt": 1,
			"total_damage_taken": 1,
		})

	cursor, err := m.collection().Find(ctx, filter, opts)
	if err != nil {
		m.log.Error(err)
		return nil, 0, fmt.Errorf("find leaderboard: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]user.LeaderboardEntry, 0, limit)
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, 0, fmt.Errorf("decode leaderboard: %w", err)
	}

	total, err := m.collection().CountDocuments(ctx, filter)
	if err != nil {
		m.log.Error(err)
		return nil, 0, fmt.Errorf("count leaderboard: %w", err)
	}
	return entries, total, nil
}

func (m *MongoUserStorage) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "win_rate", Value: -1}, {Key: "games_won", Value: -1}}},
	})
	return err
}
