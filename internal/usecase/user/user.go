package user

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"covid_slayer/internal/domain/game"
	userDomain "covid_slayer/internal/domain/user"
)

type ProfileStore interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*userDomain.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName, avatar string) (*userDomain.User, error)
	Leaderboard(ctx context.Context, skip, limit int) ([]userDomain.LeaderboardEntry, int64, error)
}

// StatsReconciler replays finished games whose stats rollup did not land.
type StatsReconciler interface {
	ReconcileStats(ctx context.Context, ownerID primitive.ObjectID) error
}

type UserUseCase struct {
	store      ProfileStore
	reconciler StatsReconciler
	log        *zap.SugaredLogger
	pageLimit  int
}

func NewUserUseCase(store ProfileStore, reconciler StatsReconciler, log *zap.SugaredLogger, pageLimit int) *UserUseCase {
	if pageLimit <= 0 {
		pageLimit = 10
	}
	return &UserUseCase{store: store, reconciler: reconciler, log: log, pageLimit: pageLimit}
}

// Profile returns the user's current profile after settling any pending
// stats rollups. A failed reconcile is logged and the stored profile served.
func (u *UserUseCase) Profile(ctx context.Context, id primitive.ObjectID) (*userDomain.User, error) {
	if u.reconciler != nil {
		if err := u.reconciler.ReconcileStats(ctx, id); err != nil {
			u.log.Warnf("reconcile stats for user %s: %v", id.Hex(), err)
		}
	}
	return u.store.GetUserByID(ctx, id)
}

func (u *UserUseCase) UpdateProfile(ctx context.Context, id primitive.ObjectID, req userDomain.UpdateProfileRequest) (*userDomain.User, error) {
	return u.store.UpdateProfile(ctx, id, strings.TrimSpace(req.FullName), req.Avatar)
}

func (u *UserUseCase) Leaderboard(ctx context.Context, page, limit int) ([]userDomain.LeaderboardEntry, game.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = u.pageLimit
	}
	if limit > 100 {
		limit = 100
	}
	entries, total, err := u.store.Leaderboard(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, game.Pagination{}, err
	}
	return entries, game.NewPagination(page, limit, total), nil
}
