package game

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxHealth       = 100
	DefaultGameTime = 60
	MinGameTime     = 30
	MaxGameTime     = 300

	// SummaryLogLimit is how many trailing log entries a summary carries.
	SummaryLogLimit = 10

	MonsterName = "Covid Monster"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusSurrendered Status = "surrendered"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusSurrendered
}

type Winner string

const (
	WinnerNone    Winner = ""
	WinnerPlayer  Winner = "player"
	WinnerMonster Winner = "monster"
	WinnerTimeout Winner = "timeout"
)

type Game struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Player           primitive.ObjectID `json:"player" bson:"player"`
	PlayerName       string             `json:"playerName" bson:"player_name"`
	PlayerHealth     int                `json:"playerHealth" bson:"player_health"`
	MonsterHealth    int                `json:"monsterHealth" bson:"monster_health"`
	GameTime         int                `json:"gameTime" bson:"game_time"`
	TimeRemaining    int                `json:"timeRemaining" bson:"time_remaining"`
	Status           Status             `json:"status" bson:"status"`
	Winner           *Winner            `json:"winner" bson:"winner"`
	GameLogs         []LogEntry         `json:"gameLogs,omitempty" bson:"game_logs,omitempty"`
	TotalDamageDealt int                `json:"totalDamageDealt" bson:"total_damage_dealt"`
	TotalDamageTaken int                `json:"totalDamageTaken" bson:"total_damage_taken"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	CompletedAt      *time.Time         `json:"completedAt" bson:"completed_at"`
	Version          int64              `json:"-" bson:"version"`
	StatsApplied     bool               `json:"-" bson:"stats_applied"`
}

type LogEntry struct {
	Action             string    `json:"action" bson:"action"`
	PlayerDamage       int       `json:"playerDamage" bson:"player_damage"`
	MonsterDamage      int       `json:"monsterDamage" bson:"monster_damage"`
	HealingAmount      int       `json:"healingAmount,omitempty" bson:"healing_amount,omitempty"`
	PlayerHealthAfter  int       `json:"playerHealthAfter" bson:"player_health_after"`
	MonsterHealthAfter int       `json:"monsterHealthAfter" bson:"monster_health_after"`
	Timestamp          time.Time `json:"timestamp" bson:"timestamp"`
	Description        string    `json:"description" bson:"description"`
}

// New returns an active game at full health with its opening log entry.
func New(owner primitive.ObjectID, ownerName string, gameTime int, now time.Time) *Game {
	g := &Game{
		Player:        owner,
		PlayerName:    ownerName,
		PlayerHealth:  MaxHealth,
		MonsterHealth: MaxHealth,
		GameTime:      gameTime,
		TimeRemaining: gameTime,
		Status:        StatusActive,
		CreatedAt:     now,
	}
	g.AppendLog(LogEntry{
		Action:             LogGameStart,
		PlayerHealthAfter:  MaxHealth,
		MonsterHealthAfter: MaxHealth,
		Timestamp:          now,
		Description:        StartDescription(ownerName, gameTime),
	})
	return g
}

func (g *Game) AppendLog(entry LogEntry) {
	g.GameLogs = append(g.GameLogs, entry)
}

// Finish moves an active game into a terminal status exactly once.
func (g *Game) Finish(status Status, winner Winner, now time.Time) {
	if g.Status.Terminal() {
		return
	}
	g.Status = status
	g.Winner = &winner
	g.CompletedAt = &now
}

func (g *Game) WinnerValue() Winner {
	if g.Winner == nil {
		return WinnerNone
	}
	return *g.Winner
}

// Duration is the length of a finished game in whole seconds.
func (g *Game) Duration() *int64 {
	if g.CompletedAt == nil || g.CreatedAt.IsZero() {
		return nil
	}
	d := int64(g.CompletedAt.Sub(g.CreatedAt).Round(time.Second) / time.Second)
	return &d
}

// ServerTimeRemaining derives the countdown from the stored start time.
func (g *Game) ServerTimeRemaining(now time.Time) int {
	elapsed := int(now.Sub(g.CreatedAt) / time.Second)
	remaining := g.GameTime - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (g *Game) lastLogs(limit int) []LogEntry {
	if limit <= 0 || len(g.GameLogs) <= limit {
		return g.GameLogs
	}
	return g.GameLogs[len(g.GameLogs)-limit:]
}

type Summary struct {
	ID            primitive.ObjectID `json:"id"`
	PlayerName    string             `json:"playerName"`
	PlayerHealth  int                `json:"playerHealth"`
	MonsterHealth int                `json:"monsterHealth"`
	GameTime      int                `json:"gameTime"`
	TimeRemaining int                `json:"timeRemaining"`
	Status        Status             `json:"status"`
	Winner        *Winner            `json:"winner"`
	GameLogs      []LogEntry         `json:"gameLogs"`
	CreatedAt     time.Time          `json:"createdAt"`
	ActionResult  *ActionResult      `json:"actionResult,omitempty"`
}

func (g *Game) Summary(logLimit int) Summary {
	return Summary{
		ID:            g.ID,
		PlayerName:    g.PlayerName,
		PlayerHealth:  g.PlayerHealth,
		MonsterHealth: g.MonsterHealth,
		GameTime:      g.GameTime,
		TimeRemaining: g.TimeRemaining,
		Status:        g.Status,
		Winner:        g.Winner,
		GameLogs:      g.lastLogs(logLimit),
		CreatedAt:     g.CreatedAt,
	}
}

type Detail struct {
	ID               primitive.ObjectID `json:"id"`
	PlayerName       string             `json:"playerName"`
	PlayerHealth     int                `json:"playerHealth"`
	MonsterHealth    int                `json:"monsterHealth"`
	GameTime         int                `json:"gameTime"`
	TimeRemaining    int                `json:"timeRemaining"`
	Status           Status             `json:"status"`
	Winner           *Winner            `json:"winner"`
	GameLogs         []LogEntry         `json:"gameLogs"`
	TotalDamageDealt int                `json:"totalDamageDealt"`
	TotalDamageTaken int                `json:"totalDamageTaken"`
	CreatedAt        time.Time          `json:"createdAt"`
	CompletedAt      *time.Time         `json:"completedAt"`
	Duration         *int64             `json:"duration"`
}

func (g *Game) Detail() Detail {
	return Detail{
		ID:               g.ID,
		PlayerName:       g.PlayerName,
		PlayerHealth:     g.PlayerHealth,
		MonsterHealth:    g.MonsterHealth,
		GameTime:         g.GameTime,
		TimeRemaining:    g.TimeRemaining,
		Status:           g.Status,
		Winner:           g.Winner,
		GameLogs:         g.GameLogs,
		TotalDamageDealt: g.TotalDamageDealt,
		TotalDamageTaken: g.TotalDamageTaken,
		CreatedAt:        g.CreatedAt,
		CompletedAt:      g.CompletedAt,
		Duration:         g.Duration(),
	}
}

type CreateGameRequest struct {
	GameTime *int `json:"gameTime" validate:"omitempty,min=30,max=300"`
}

type ActionRequest struct {
	Action        string `json:"action" validate:"required,oneof=attack Blast heal Giveup blast giveup"`
	TimeRemaining *int   `json:"timeRemaining" validate:"required,min=0"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

type StatsSummary struct {
	TotalGames       int   `json:"totalGames" bson:"total_games"`
	GamesWon         int   `json:"gamesWon" bson:"games_won"`
	GamesLost        int   `json:"gamesLost" bson:"games_lost"`
	GamesDraw        int   `json:"gamesDraw" bson:"games_draw"`
	TotalDamageDealt int   `json:"totalDamageDealt" bson:"total_damage_dealt"`
	TotalDamageTaken int   `json:"totalDamageTaken" bson:"total_damage_taken"`
	AvgGameDuration  int64 `json:"avgGameDuration" bson:"-"`
	WinRate          int   `json:"winRate" bson:"-"`
}
