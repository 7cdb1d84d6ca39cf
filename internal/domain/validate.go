package domain

import (
	"fmt"
	"strings"
)

// NormalizeTag strips the leading '#' and upper-cases a player tag.
func NormalizeTag(raw string) (string, error) {
	tag := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
	if tag == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTag)
	}
	for _, r := range tag {
		if (r < '0' || r > '9') && (r < 'A' || r > 'Z') {
			return "", fmt.Errorf("%w: %q", ErrInvalidTag, raw)
		}
	}
	return tag, nil
}

func (r *Registry) Validate() error {
	if r.Players == nil {
		return fmt.Errorf("%w: registry has no players mapping", ErrDataShape)
	}
	if r.LastRollover != "" {
		if _, err := r.LastRollover.Time(); err != nil {
			return fmt.Errorf("%w: last_rollover %q", ErrDataShape, r.LastRollover)
		}
	}
	for key, p := range r.Players {
		if p == nil {
			return fmt.Errorf("%w: player %q is null", ErrDataShape, key)
		}
		if p.Tag == "" || p.Tag != key {
			return fmt.Errorf("%w: player %q has tag %q", ErrDataShape, key, p.Tag)
		}
		for day, log := range p.LegendLog {
			if err := validateDay(day, log != nil); err != nil {
				return fmt.Errorf("player %q: %w", key, err)
			}
			if err := validateEntries(log.Attack, log.Defense); err != nil {
				return fmt.Errorf("player %q day %s: %w", key, day, err)
			}
		}
	}
	return nil
}

func (s *Season) Validate() error {
	if s.Players == nil {
		return fmt.Errorf("%w: season has no players mapping", ErrDataShape)
	}
	switch s.Reset.State {
	case ResetArmed, ResetFired:
	default:
		return fmt.Errorf("%w: reset state %q", ErrDataShape, s.Reset.State)
	}
	for tag, days := range s.Players {
		if tag == "" {
			return fmt.Errorf("%w: empty seasonal tag", ErrDataShape)
		}
		if days == nil {
			return fmt.Errorf("%w: season %q is null", ErrDataShape, tag)
		}
		for day, sd := range days {
			if err := validateDay(day, sd != nil); err != nil {
				return fmt.Errorf("season %q: %w", tag, err)
			}
			if err := validateEntries(sd.Offense, sd.Defense); err != nil {
				return fmt.Errorf("season %q day %s: %w", tag, day, err)
			}
		}
	}
	return nil
}

func (s Snapshot) Validate() error {
	for tag, trophies := range s {
		if tag == "" {
			return fmt.Errorf("%w: empty snapshot tag", ErrDataShape)
		}
		if trophies < 0 {
			return fmt.Errorf("%w: snapshot %q has %d trophies", ErrDataShape, tag, trophies)
		}
	}
	return nil
}

func validateDay(day DayKey, present bool) error {
	if _, err := day.Time(); err != nil {
		return fmt.Errorf("%w: day key %q", ErrDataShape, day)
	}
	if !present {
		return fmt.Errorf("%w: day %s is null", ErrDataShape, day)
	}
	return nil
}

func validateEntries(seqs ...[]int) error {
	for _, seq := range seqs {
		for _, v := range seq {
			if v <= 0 {
				return fmt.Errorf("%w: non-positive entry %d", ErrDataShape, v)
			}
		}
	}
	return nil
}

// Archive copies a live day into its seasonal form. Slices are copied, not shared.
func (d *DayLog) Archive() *SeasonDay {
	sd := &SeasonDay{
		Offense: append([]int{}, d.Attack...),
		Defense: append([]int{}, d.Defense...),
	}
	if d.StartTrophies != nil {
		v := *d.StartTrophies
		sd.StartTrophies = &v
	}
	return sd
}
