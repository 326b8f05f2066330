package domain

import "time"

// PlayerTotals are the accumulated values the ledger keeps per player.
type PlayerTotals struct {
	Address          string `json:"address"`
	Score            int64  `json:"score"`
	TransactionCount int64  `json:"transactionCount"`
}

type LeaderboardEntry struct {
	PlayerTotals
	Rank int `json:"rank"`
}

type Leaderboard struct {
	Entries         []LeaderboardEntry `json:"leaderboard"`
	TotalPlayers    int                `json:"totalPlayers"`
	LastUpdated     time.Time          `json:"lastUpdated"`
	ContractAddress string             `json:"contractAddress"`
}
