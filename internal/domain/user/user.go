package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID               primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	FullName         string               `json:"fullName" bson:"full_name"`
	Email            string               `json:"email" bson:"email"`
	PasswordHash     string               `json:"-" bson:"password"`
	Avatar           string               `json:"avatar" bson:"avatar"`
	GamesPlayed      int                  `json:"gamesPlayed" bson:"games_played"`
	GamesWon         int                  `json:"gamesWon" bson:"games_won"`
	WinRate          int                  `json:"winRate" bson:"win_rate"`
	TotalDamageDealt int                  `json:"totalDamageDealt" bson:"total_damage_dealt"`
	TotalDamageTaken int                  `json:"totalDamageTaken" bson:"total_damage_taken"`
	AppliedGames     []primitive.ObjectID `json:"-" bson:"applied_games,omitempty"`
	CreatedAt        time.Time            `json:"createdAt" bson:"created_at"`
	LastLogin        *time.Time           `json:"lastLogin" bson:"last_login"`
}

// ComputeWinRate returns games won as a rounded percentage of games played.
func ComputeWinRate(played, won int) int {
	if played <= 0 {
		return 0
	}
	return (won*100*2 + played) / (played * 2)
}

// GameResult is what a finished game contributes to lifetime statistics.
type GameResult struct {
	GameID      primitive.ObjectID
	Won         bool
	DamageDealt int
	DamageTaken int
}

// AppliedGamesWindow bounds how many rolled-up game ids a user keeps. The game
// side stats_applied flag stops older games from being offered again, so the
// ids only have to cover games still between rollup and that flag being set.
const AppliedGamesWindow = 100

// Apply rolls a finished game into the counters once per game.
func (u *User) Apply(result GameResult) bool {
	for _, id := range u.AppliedGames {
		if id == result.GameID {
			return false
		}
	}
	u.GamesPlayed++
	if result.Won {
		u.GamesWon++
	}
	u.TotalDamageDealt += result.DamageDealt
	u.TotalDamageTaken += result.DamageTaken
	u.WinRate = ComputeWinRate(u.GamesPlayed, u.GamesWon)
	u.AppliedGames = append(u.AppliedGames, result.GameID)
	if n := len(u.AppliedGames); n > AppliedGamesWindow {
		u.AppliedGames = u.AppliedGames[n-AppliedGamesWindow:]
	}
	return true
}

type Profile struct {
	ID               primitive.ObjectID `json:"id"`
	FullName         string             `json:"fullName"`
	Email            string             `json:"email"`
	Avatar           string             `json:"avatar"`
	GamesPlayed      int                `json:"gamesPlayed"`
	GamesWon         int                `json:"gamesWon"`
	WinRate          int                `json:"winRate"`
	TotalDamageDealt int                `json:"totalDamageDealt"`
	TotalDamageTaken int                `json:"totalDamageTaken"`
	CreatedAt        time.Time          `json:"createdAt"`
	LastLogin        *time.Time         `json:"lastLogin"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:               u.ID,
		FullName:         u.FullName,
		Email:            u.Email,
		Avatar:           u.Avatar,
		GamesPlayed:      u.GamesPlayed,
		GamesWon:         u.GamesWon,
		WinRate:          u.WinRate,
		TotalDamageDealt: u.TotalDamageDealt,
		TotalDamageTaken: u.TotalDamageTaken,
		CreatedAt:        u.CreatedAt,
		LastLogin:        u.LastLogin,
	}
}

type LeaderboardEntry struct {
	ID               primitive.ObjectID `json:"id" bson:"_id"`
	FullName         string             `json:"fullName" bson:"full_name"`
	Avatar           string             `json:"avatar" bson:"avatar"`
	GamesPlayed      int                `json:"gamesPlayed" bson:"games_played"`
	GamesWon         int                `json:"gamesWon" bson:"games_won"`
	WinRate          int                `json:"winRate" bson:"win_rate"`
	TotalDamageDealt int                `json:"totalDamageDealt" bson:"total_damage_dealt"`
	TotalDamageTaken int                `json:"totalDamageTaken" bson:"total_damage_taken"`
}

type RegisterRequest struct {
	FullName string `json:"fullName" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	FullName string `json:"fullName" validate:"omitempty,min=2,max=50"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
}
