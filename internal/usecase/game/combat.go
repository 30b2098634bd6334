package game

import (
	"fmt"
	"math/rand"

	"covid_slayer/internal/domain/game"
)

// Source supplies randomness for damage rolls.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

type globalSource struct{}

func (globalSource) Intn(n int) int { return rand.Intn(n) }

// DefaultSource draws from the process-wide math/rand generator and is safe
// for concurrent use.
var DefaultSource Source = globalSource{}

type damageRange struct{ min, max int }

var (
	attackPlayerDamage  = damageRange{1, 10}
	attackMonsterDamage = damageRange{1, 10}
	blastPlayerDamage   = damageRange{5, 15}
	blastMonsterDamage  = damageRange{8, 20}
	healAmount          = damageRange{5, 15}
	healStrike          = damageRange{1, 8}
)

// RandomInRange returns a uniformly distributed integer in [min, max].
func RandomInRange(src Source, min, max int) int {
	if max <= min {
		return min
	}
	return src.Intn(max-min+1) + min
}

func (r damageRange) roll(src Source) int {
	return RandomInRange(src, r.min, r.max)
}

func clampHealth(v int) int {
	if v < 0 {
		return 0
	}
	if v > game.MaxHealth {
		return game.MaxHealth
	}
	return v
}

// Resolve computes one turn's health changes. Callers pass actions from
// game.ParseAction; any other value, including the zero Action, resolves to a
// turn that rolls nothing and leaves both healths unchanged.
func Resolve(src Source, action game.Action, playerHealth, monsterHealth int) game.ActionResult {
	switch action {
	case game.ActionAttack:
		playerDamage := attackPlayerDamage.roll(src)
		monsterDamage := attackMonsterDamage.roll(src)
		return game.ActionResult{
			Action:             action,
			PlayerDamage:       playerDamage,
			MonsterDamage:      monsterDamage,
			PlayerHealthAfter:  clampHealth(playerHealth - playerDamage),
			MonsterHealthAfter: clampHealth(monsterHealth - monsterDamage),
			Description: fmt.Sprintf("Player attacks %s for %d damage, but gets infected for %d damage",
				game.MonsterName, monsterDamage, playerDamage),
		}
	case game.ActionBlast:
		playerDamage := blastPlayerDamage.roll(src)
		monsterDamage := blastMonsterDamage.roll(src)
		return game.ActionResult{
			Action:             action,
			PlayerDamage:       playerDamage,
			MonsterDamage:      monsterDamage,
			PlayerHealthAfter:  clampHealth(playerHealth - playerDamage),
			MonsterHealthAfter: clampHealth(monsterHealth - monsterDamage),
			Description: fmt.Sprintf("Player launches BLAST on %s for %d damage, but suffers power infection for %d damage",
				game.MonsterName, monsterDamage, playerDamage),
		}
	case game.ActionHeal:
		healing := healAmount.roll(src)
		strike := healStrike.roll(src)
		// The strike is booked as damage taken but comes off the monster's
		// health; the player keeps the full heal.
		return game.ActionResult{
			Action:             action,
			PlayerDamage:       strike,
			MonsterDamage:      0,
			HealingAmount:      healing,
			PlayerHealthAfter:  clampHealth(playerHealth + healing),
			MonsterHealthAfter: clampHealth(monsterHealth - strike),
			Description: fmt.Sprintf("Player uses healing potion and recovers %d health, but %s attacks for %d damage during healing",
				healing, game.MonsterName, strike),
		}
	case game.ActionGiveup:
		return game.ActionResult{
			Action:             action,
			PlayerHealthAfter:  clampHealth(playerHealth),
			MonsterHealthAfter: clampHealth(monsterHealth),
			Description:        fmt.Sprintf("Player gives up to the %s", game.MonsterName),
		}
	default:
		// Zero value or unparsed input: no rolls, healths unchanged.
		return game.ActionResult{
			Action:             action,
			PlayerHealthAfter:  clampHealth(playerHealth),
			MonsterHealthAfter: clampHealth(monsterHealth),
			Description:        "Unknown action",
		}
	}
}

// Evaluate decides whether a game is over. Player defeat is checked first, so
// a double knockout goes to the monster.
func Evaluate(playerHealth, monsterHealth, timeRemaining int) game.EndResult {
	switch {
	case playerHealth <= 0:
		return game.EndResult{Over: true, Winner: game.WinnerMonster, Reason: "Player defeated"}
	case monsterHealth <= 0:
		return game.EndResult{Over: true, Winner: game.WinnerPlayer, Reason: "Monster defeated"}
	case timeRemaining <= 0:
		switch {
		case playerHealth > monsterHealth:
			return game.EndResult{Over: true, Winner: game.WinnerPlayer, Reason: "Time up - Player has more health"}
		case monsterHealth > playerHealth:
			return game.EndResult{Over: true, Winner: game.WinnerMonster, Reason: "Time up - Monster has more health"}
		default:
			return game.EndResult{Over: true, Winner: game.WinnerTimeout, Reason: "Time up - Draw"}
		}
	}
	return game.EndResult{}
}
