package game

import (
	"fmt"
	"strings"
)

// Action is a wire-level turn identifier. The mixed casing is part of the
// public API the browser client speaks.
type Action string

const (
	ActionAttack Action = "attack"
	ActionBlast  Action = "Blast"
	ActionHeal   Action = "heal"
	ActionGiveup Action = "Giveup"
)

const (
	LogGameStart = "game_start"
	LogGameEnd   = "game_end"
)

// ParseAction maps a request value onto a canonical Action. Lowercase
// "blast" and "giveup" are accepted as aliases.
func ParseAction(raw string) (Action, bool) {
	switch strings.TrimSpace(raw) {
	case "attack":
		return ActionAttack, true
	case "Blast", "blast":
		return ActionBlast, true
	case "heal":
		return ActionHeal, true
	case "Giveup", "giveup":
		return ActionGiveup, true
	}
	return "", false
}

// ActionResult is the outcome of one resolved turn.
type ActionResult struct {
	Action             Action `json:"action"`
	PlayerDamage       int    `json:"playerDamage"`
	MonsterDamage      int    `json:"monsterDamage"`
	HealingAmount      int    `json:"healingAmount"`
	PlayerHealthAfter  int    `json:"-"`
	MonsterHealthAfter int    `json:"-"`
	Description        string `json:"description"`
}

// EndResult is the verdict of the end-condition check.
type EndResult struct {
	Over   bool
	Winner Winner
	Reason string
}

func StartDescription(playerName string, gameTime int) string {
	return fmt.Sprintf("Game started! %s vs %s (%ds timer)", playerName, MonsterName, gameTime)
}

func EndDescription(playerName string, winner Winner) string {
	switch winner {
	case WinnerPlayer:
		return fmt.Sprintf("Game ended! %s wins!", playerName)
	case WinnerMonster:
		return fmt.Sprintf("Game ended! %s wins!", MonsterName)
	default:
		return "Game ended! Draw!"
	}
}
