package domain

import (
	"time"
)

// DayKey identifies a clash day as an ISO date, e.g. "2025-06-30".
type DayKey string

const DayKeyLayout = "2006-01-02"

func (k DayKey) Time() (time.Time, error) {
	return time.Parse(DayKeyLayout, string(k))
}

type ChangeKind string

const (
	KindAttack  ChangeKind = "attack"
	KindDefense ChangeKind = "defense"
)

type Totals struct {
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
}

type DayLog struct {
	Attack        []int `json:"attack"`
	Defense       []int `json:"defense"`
	StartTrophies *int  `json:"start_trophies,omitempty"`
}

func (d *DayLog) Totals() Totals {
	return Totals{Attack: sum(d.Attack), Defense: sum(d.Defense)}
}

type PlayerRecord struct {
	Tag       string             `json:"tag"`
	Name      string             `json:"name"`
	Legend    Totals             `json:"legend"`
	LegendLog map[DayKey]*DayLog `json:"legend_log"`
	AddedAt   time.Time          `json:"added_at"`
}

// Registry is the players.json document.
type Registry struct {
	Players      map[string]*PlayerRecord `json:"players"`
	LastRollover DayKey                   `json:"last_rollover,omitempty"`
}

func NewRegistry() Registry {
	return Registry{Players: map[string]*PlayerRecord{}}
}

type SeasonDay struct {
	Offense       []int `json:"offense"`
	Defense       []int `json:"defense"`
	StartTrophies *int  `json:"start_trophies,omitempty"`
}

type ResetState string

const (
	ResetArmed ResetState = "armed"
	ResetFired ResetState = "fired"
)

type ResetMarker struct {
	State       ResetState `json:"state"`
	FiredAt     *time.Time `json:"fired_at,omitempty"`
	SeasonStart DayKey     `json:"season_start,omitempty"`
}

// Season is the seasonal.json document.
type Season struct {
	Players map[string]map[DayKey]*SeasonDay `json:"players"`
	Reset   ResetMarker                      `json:"reset"`
}

func NewSeason() Season {
	return Season{
		Players: map[string]map[DayKey]*SeasonDay{},
		Reset:   ResetMarker{State: ResetArmed},
	}
}

// Snapshot maps player tag to the last observed trophy count.
type Snapshot map[string]int

type State struct {
	Registry Registry
	Season   Season
	Snapshot Snapshot
}

func NewState() *State {
	return &State{
		Registry: NewRegistry(),
		Season:   NewSeason(),
		Snapshot: Snapshot{},
	}
}

type ChangeEvent struct {
	ID         string     `json:"id"`
	PlayerTag  string     `json:"player_tag"`
	PlayerName string     `json:"player_name"`
	Delta      int        `json:"delta"`
	Kind       ChangeKind `json:"kind"`
	Magnitude  int        `json:"delta_magnitude"`
	Entries    []int      `json:"entries"`
	DayKey     DayKey     `json:"day_key"`
	Trophies   int        `json:"trophies"`
	ObservedAt time.Time  `json:"observed_at"`
}

type SeasonResetEvent struct {
	ID             string    `json:"id"`
	FiredAt        time.Time `json:"fired_at"`
	SeasonStart    DayKey    `json:"season_start"`
	PlayersCleared int       `json:"players_cleared"`
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
