package constants

import "time"

const (
	ExternalAPITimeout = 30 * time.Second
	ConnectTimeout     = 10 * time.Second
	ReadTimeout        = 10 * time.Second
	WriteTimeout       = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	FetchAttempts    = 3
	FetchBackoffBase = 1 * time.Second
)

const (
	HTTPMaxConnsPerHost     = 30
	HTTPMaxIdleConnDuration = 1 * time.Minute
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

// Clash day boundary, Asia/Kolkata local time.
const (
	DefaultTimeZone    = "Asia/Kolkata"
	DefaultResetHour   = 10
	DefaultResetMinute = 30
)

const (
	PollInterval     = 1 * time.Minute
	RolloverInterval = 1 * time.Minute
	SeasonInterval   = 1 * time.Minute
)

// A single legend attack win is worth 40 trophies.
const (
	AttackChunk    = 40
	MinChunkedGain = 80
	MaxChunkedGain = 320
)

const (
	PlayersFile  = "players.json"
	SeasonalFile = "seasonal.json"
	PreviousFile = "previous.json"
)

const (
	TrophyChangeSubject = "legend.trophy_change"
	SeasonResetSubject  = "legend.season_reset"
	TrophyChangeTopic   = "legend-trophy-changes"
	SeasonResetTopic    = "legend-season-resets"
)
