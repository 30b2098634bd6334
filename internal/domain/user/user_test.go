package user

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestComputeWinRate(t *testing.T) {
	tests := []struct{ played, won, want int }{
		{0, 0, 0},
		{1, 1, 100},
		{3, 1, 33},
		{3, 2, 67},
		{8, 1, 13},
		{200, 1, 1},
		{200, 29, 15},
	}
	for _, tt := range tests {
		if got := ComputeWinRate(tt.played, tt.won); got != tt.want {
			t.Errorf("ComputeWinRate(%d, %d) = %d, want %d", tt.played, tt.won, got, tt.want)
		}
	}
}

func TestApplyCountsGameOnce(t *testing.T) {
	u := &User{}
	result := GameResult{GameID: primitive.NewObjectID(), Won: true, DamageDealt: 40, DamageTaken: 12}

	if !u.Apply(result) {
		t.Fatal("first apply rejected")
	}
	if u.Apply(result) {
		t.Fatal("second apply of the same game accepted")
	}
	u.Apply(GameResult{GameID: primitive.NewObjectID(), DamageDealt: 5, DamageTaken: 30})

	if u.GamesPlayed != 2 || u.GamesWon != 1 || u.WinRate != 50 {
		t.Fatalf("played=%d won=%d rate=%d", u.GamesPlayed, u.GamesWon, u.WinRate)
	}
	if u.TotalDamageDealt != 45 || u.TotalDamageTaken != 42 {
		t.Fatalf("dealt=%d taken=%d", u.TotalDamageDealt, u.TotalDamageTaken)
	}
}

func TestApplyKeepsBoundedGameWindow(t *testing.T) {
	u := &User{}
	ids := make([]primitive.ObjectID, AppliedGamesWindow+5)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
		u.Apply(GameResult{GameID: ids[i], Won: i%2 == 0})
	}

	if len(u.AppliedGames) != AppliedGamesWindow {
		t.Fatalf("kept %d ids, want %d", len(u.AppliedGames), AppliedGamesWindow)
	}
	if u.AppliedGames[0] != ids[5] {
		t.Fatal("oldest ids were not the ones dropped")
	}
	if u.GamesPlayed != len(ids) {
		t.Fatalf("played=%d, want %d", u.GamesPlayed, len(ids))
	}
	if u.Apply(GameResult{GameID: ids[len(ids)-1]}) {
		t.Fatal("recent game counted twice")
	}
}
