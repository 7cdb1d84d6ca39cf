package service

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"legend-tracker/internal/constants"
	"legend-tracker/internal/domain"
	"legend-tracker/internal/repository"

	"github.com/rs/zerolog"
)

type PlayerSummary struct {
	Tag      string        `json:"tag"`
	Name     string        `json:"name"`
	Legend   domain.Totals `json:"legend"`
	Trophies *int          `json:"trophies,omitempty"`
	AddedAt  time.Time     `json:"added_at"`
}

type PlayerService struct {
	store  repository.Store
	logger zerolog.Logger
}

func NewPlayerService(store repository.Store, logger zerolog.Logger) *PlayerService {
	return &PlayerService{store: store, logger: logger}
}

func (s *PlayerService) AddPlayer(ctx context.Context, name, tag string) (*PlayerSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	tag, err := decodeTag(tag)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "#" + tag
	}

	var rec domain.PlayerRecord
	err = s.store.Update(ctx, func(st *domain.State) error {
		if _, ok := st.Registry.Players[tag]; ok {
			return fmt.Errorf("%w: %s", domain.ErrPlayerExists, tag)
		}
		rec = domain.PlayerRecord{
			Tag:       tag,
			Name:      name,
			LegendLog: map[domain.DayKey]*domain.DayLog{},
			AddedAt:   time.Now().UTC(),
		}
		st.Registry.Players[tag] = &rec
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("tag", tag).Msg("failed to add player")
		return nil, err
	}

	s.logger.Info().Str("tag", tag).Str("name", name).Msg("player added")
	return &PlayerSummary{Tag: rec.Tag, Name: rec.Name, AddedAt: rec.AddedAt}, nil
}

// RemovePlayer drops the player and its last trophy reading, so adding it back starts cold.
// Seasonal history is kept.
func (s *PlayerService) RemovePlayer(ctx context.Context, tag string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	tag, err := decodeTag(tag)
	if err != nil {
		return err
	}
	err = s.store.Update(ctx, func(st *domain.State) error {
		if _, ok := st.Registry.Players[tag]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, tag)
		}
		delete(st.Registry.Players, tag)
		delete(st.Snapshot, tag)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("tag", tag).Msg("player removed")
	return nil
}

func (s *PlayerService) ListPlayers(ctx context.Context) ([]PlayerSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PlayerSummary, 0, len(st.Registry.Players))
	for _, rec := range st.Registry.Players {
		out = append(out, summarize(st, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func (s *PlayerService) GetLegendLog(ctx context.Context, tag string) (map[domain.DayKey]*domain.DayLog, error) {
	rec, _, err := s.get(ctx, tag)
	if err != nil {
		return nil, err
	}
	if rec.LegendLog == nil {
		return map[domain.DayKey]*domain.DayLog{}, nil
	}
	return rec.LegendLog, nil
}

func (s *PlayerService) GetSeason(ctx context.Context, tag string) (map[domain.DayKey]*domain.SeasonDay, error) {
	rec, st, err := s.get(ctx, tag)
	if err != nil {
		return nil, err
	}
	days := st.Season.Players[rec.Tag]
	if days == nil {
		days = map[domain.DayKey]*domain.SeasonDay{}
	}
	return days, nil
}

func (s *PlayerService) get(ctx context.Context, tag string) (*domain.PlayerRecord, *domain.State, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	tag, err := decodeTag(tag)
	if err != nil {
		return nil, nil, err
	}
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	rec, ok := st.Registry.Players[tag]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, tag)
	}
	return rec, st, nil
}

func summarize(st *domain.State, rec *domain.PlayerRecord) PlayerSummary {
	sum := PlayerSummary{
		Tag:     rec.Tag,
		Name:    rec.Name,
		Legend:  rec.Legend,
		AddedAt: rec.AddedAt,
	}
	if v, ok := st.Snapshot[rec.Tag]; ok {
		sum.Trophies = &v
	}
	return sum
}

// decodeTag accepts tags as they arrive from a URL path, where '#' is usually escaped.
func decodeTag(raw string) (string, error) {
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidTag, raw)
	}
	return domain.NormalizeTag(unescaped)
}
