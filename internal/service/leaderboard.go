package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"score_gate/internal/config"
	"score_gate/internal/domain"
	"score_gate/internal/repository"
	apperrors "score_gate/pkg/errors"
	"score_gate/pkg/logger"
)

// LedgerReader is the read side of the ledger used to build the leaderboard.
type LedgerReader interface {
	PlayerCount(ctx context.Context) (uint64, error)
	PlayerAt(ctx context.Context, index uint64) (string, error)
	PlayerTotals(ctx context.Context, player string) (*domain.PlayerTotals, error)
	// UpdatedPlayers lists players seen in update events over the last lookback blocks.
	UpdatedPlayers(ctx context.Context, lookback uint64) ([]string, error)
	ContractAddress() string
}

type LeaderboardService interface {
	Get(ctx context.Context) (*domain.Leaderboard, error)
	GetPlayer(ctx context.Context, address string) (*domain.LeaderboardEntry, error)
}

type leaderboardService struct {
	reader   LedgerReader
	cache    repository.LeaderboardCache
	cfg      config.LedgerConfig
	log      logger.Logger
	now      func() time.Time
	parallel int
}

func NewLeaderboardService(reader LedgerReader, cache repository.LeaderboardCache, cfg config.LedgerConfig, log logger.Logger) LeaderboardService {
	return &leaderboardService{
		reader:   reader,
		cache:    cache,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		parallel: 8,
	}
}

func (s *leaderboardService) Get(ctx context.Context) (*domain.Leaderboard, error) {
	if lb, ok, err := s.cache.Get(ctx); err == nil && ok {
		return lb, nil
	}

	players, err := s.allPlayers(ctx)
	if err != nil {
		return nil, err
	}

	totals := s.fetchTotals(ctx, players)
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Score > totals[j].Score
	})

	entries := make([]domain.LeaderboardEntry, 0, len(totals))
	for i, t := range totals {
		entries = append(entries, domain.LeaderboardEntry{PlayerTotals: t, Rank: i + 1})
	}
	if size := s.cfg.LeaderboardSize; size > 0 && len(entries) > size {
		entries = entries[:size]
	}

	lb := &domain.Leaderboard{
		Entries:         entries,
		TotalPlayers:    len(totals),
		LastUpdated:     s.now().UTC(),
		ContractAddress: s.reader.ContractAddress(),
	}

	if err := s.cache.Set(ctx, lb, s.cfg.LeaderboardTTL); err != nil {
		s.log.Warn("Failed to cache leaderboard", "error", err)
	}

	s.log.Info("Leaderboard rebuilt", "players", lb.TotalPlayers, "entries", len(lb.Entries))
	return lb, nil
}

// GetPlayer returns one player's totals with their rank on the current board.
// Rank is 0 when the player is outside the published top entries.
func (s *leaderboardService) GetPlayer(ctx context.Context, address string) (*domain.LeaderboardEntry, error) {
	totals, err := s.reader.PlayerTotals(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrLedger, err)
	}

	entry := &domain.LeaderboardEntry{PlayerTotals: *totals}
	lb, err := s.Get(ctx)
	if err != nil {
		s.log.Warn("Failed to rank player", "error", err, "player", address)
		return entry, nil
	}
	for _, e := range lb.Entries {
		if strings.EqualFold(e.Address, address) {
			entry.Rank = e.Rank
			break
		}
	}
	return entry, nil
}

// allPlayers enumerates players through the contract index, falling back to
// recent update events when enumeration is unavailable.
func (s *leaderboardService) allPlayers(ctx context.Context) ([]string, error) {
	count, err := s.reader.PlayerCount(ctx)
	if err == nil {
		n := count
		if limit := uint64(s.cfg.MaxScanPlayers); limit > 0 && n > limit {
			n = limit
		}
		return s.playersByIndex(ctx, n), nil
	}

	s.log.Warn("Contract enumeration unavailable, using update events", "error", err)
	players, evErr := s.reader.UpdatedPlayers(ctx, s.cfg.LookbackBlocks)
	if evErr != nil {
		s.log.Error("Failed to read update events", "error", evErr)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrLedger, evErr)
	}
	return uniquePlayers(players), nil
}

func (s *leaderboardService) playersByIndex(ctx context.Context, n uint64) []string {
	players := make([]string, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i := uint64(0); i < n; i++ {
		i := i
		g.Go(func() error {
			addr, err := s.reader.PlayerAt(gctx, i)
			if err != nil {
				s.log.Warn("Failed to read player index", "index", i, "error", err)
				return nil
			}
			players[i] = addr
			return nil
		})
	}
	_ = g.Wait()

	out := players[:0]
	for _, p := range players {
		if p != "" {
			out = append(out, p)
		}
	}
	return uniquePlayers(out)
}

// fetchTotals reads every player's totals, skipping players that fail or
// have no score.
func (s *leaderboardService) fetchTotals(ctx context.Context, players []string) []domain.PlayerTotals {
	results := make([]*domain.PlayerTotals, len(players))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, p := range players {
		i, p := i, p
		g.Go(func() error {
			t, err := s.reader.PlayerTotals(gctx, p)
			if err != nil {
				s.log.Warn("Failed to read player totals", "player", p, "error", err)
				return nil
			}
			results[i] = t
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.PlayerTotals, 0, len(results))
	for _, t := range results {
		if t != nil && t.Score > 0 {
			out = append(out, *t)
		}
	}
	return out
}

func uniquePlayers(players []string) []string {
	seen := make(map[string]struct{}, len(players))
	out := make([]string, 0, len(players))
	for _, p := range players {
		k := strings.ToLower(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
