// Package legend turns trophy readings into legend attack and defense logs.
//
// A poll only sees the trophy count, so several wins inside one interval show up as a
// single gain. Gains that are an exact 2..8 wins worth of trophies are split back into
// 40 trophy entries; everything else is logged as one entry. The split is a heuristic,
// not an exact attack count.
package legend

import (
	"time"

	"legend-tracker/internal/constants"
	"legend-tracker/internal/domain"
)

// Classify returns the kind and magnitude of a trophy change. ok is false when nothing changed.
func Classify(prev, cur int) (kind domain.ChangeKind, magnitude int, ok bool) {
	delta := cur - prev
	switch {
	case delta > 0:
		return domain.KindAttack, delta, true
	case delta < 0:
		return domain.KindDefense, -delta, true
	default:
		return "", 0, false
	}
}

// Entries applies the chunking rule: only attack gains of 80, 120, ... 320 are split.
func Entries(kind domain.ChangeKind, magnitude int) []int {
	if kind == domain.KindAttack &&
		magnitude >= constants.MinChunkedGain &&
		magnitude <= constants.MaxChunkedGain &&
		magnitude%constants.AttackChunk == 0 {
		out := make([]int, magnitude/constants.AttackChunk)
		for i := range out {
			out[i] = constants.AttackChunk
		}
		return out
	}
	return []int{magnitude}
}

type resetClock interface {
	AfterReset(now time.Time) bool
}

type Processor struct {
	clock resetClock
}

func NewProcessor(clock resetClock) *Processor {
	return &Processor{clock: clock}
}

// Process records one trophy change for a player on the given day and mirrors the day into
// the season. It returns nil when prev == cur.
func (p *Processor) Process(rec *domain.PlayerRecord, season *domain.Season, prev, cur int, day domain.DayKey, now time.Time) *domain.ChangeEvent {
	kind, magnitude, ok := Classify(prev, cur)
	if !ok {
		return nil
	}
	entries := Entries(kind, magnitude)

	if rec.LegendLog == nil {
		rec.LegendLog = map[domain.DayKey]*domain.DayLog{}
	}
	log, ok := rec.LegendLog[day]
	if !ok {
		log = &domain.DayLog{Attack: []int{}, Defense: []int{}}
		rec.LegendLog[day] = log
	}
	switch kind {
	case domain.KindAttack:
		log.Attack = append(log.Attack, entries...)
	case domain.KindDefense:
		log.Defense = append(log.Defense, entries...)
	}
	rec.Legend = log.Totals()

	if season.Players == nil {
		season.Players = map[string]map[domain.DayKey]*domain.SeasonDay{}
	}
	days := season.Players[rec.Tag]
	if days == nil {
		days = map[domain.DayKey]*domain.SeasonDay{}
		season.Players[rec.Tag] = days
	}
	sd, ok := days[day]
	if !ok {
		sd = &domain.SeasonDay{}
		days[day] = sd
	}

	if log.StartTrophies == nil && sd.StartTrophies != nil {
		v := *sd.StartTrophies
		log.StartTrophies = &v
	}
	if log.StartTrophies == nil && p.clock.AfterReset(now) {
		v := prev
		log.StartTrophies = &v
	}

	mirror := log.Archive()
	sd.Offense = mirror.Offense
	sd.Defense = mirror.Defense
	if sd.StartTrophies == nil {
		sd.StartTrophies = mirror.StartTrophies
	}

	return &domain.ChangeEvent{
		PlayerTag:  rec.Tag,
		PlayerName: rec.Name,
		Delta:      cur - prev,
		Kind:       kind,
		Magnitude:  magnitude,
		Entries:    entries,
		DayKey:     day,
		Trophies:   cur,
		ObservedAt: now,
	}
}

// Observe compares a fresh reading with the persisted snapshot and applies it. The first
// reading for a tag only seeds the snapshot. Unknown tags are ignored.
func (p *Processor) Observe(st *domain.State, tag string, cur int, day domain.DayKey, now time.Time) *domain.ChangeEvent {
	rec, ok := st.Registry.Players[tag]
	if !ok {
		return nil
	}
	if st.Snapshot == nil {
		st.Snapshot = domain.Snapshot{}
	}
	prev, seen := st.Snapshot[tag]
	if !seen {
		st.Snapshot[tag] = cur
		return nil
	}
	if prev == cur {
		return nil
	}

	ev := p.Process(rec, &st.Season, prev, cur, day, now)
	st.Snapshot[tag] = cur
	return ev
}
