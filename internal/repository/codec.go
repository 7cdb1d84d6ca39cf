package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"legend-tracker/internal/domain"
)

type document string

const (
	docPlayers  document = "players"
	docSeasonal document = "seasonal"
	docPrevious document = "previous"
)

var documents = []document{docPlayers, docSeasonal, docPrevious}

// decodeStrict rejects unknown fields and trailing data.
func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDataShape, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", domain.ErrDataShape)
	}
	return nil
}

// decodeState builds a State from raw documents. A nil entry means the document does not
// exist yet and starts empty.
func decodeState(raw map[document][]byte) (*domain.State, error) {
	st := domain.NewState()

	if b := raw[docPlayers]; b != nil {
		var reg domain.Registry
		if err := decodeStrict(b, &reg); err != nil {
			return nil, fmt.Errorf("players: %w", err)
		}
		if err := reg.Validate(); err != nil {
			return nil, fmt.Errorf("players: %w", err)
		}
		st.Registry = reg
	}

	if b := raw[docSeasonal]; b != nil {
		var season domain.Season
		if err := decodeStrict(b, &season); err != nil {
			return nil, fmt.Errorf("seasonal: %w", err)
		}
		if season.Reset.State == "" {
			season.Reset.State = domain.ResetArmed
		}
		if err := season.Validate(); err != nil {
			return nil, fmt.Errorf("seasonal: %w", err)
		}
		st.Season = season
	}

	if b := raw[docPrevious]; b != nil {
		snap := domain.Snapshot{}
		if err := decodeStrict(b, &snap); err != nil {
			return nil, fmt.Errorf("previous: %w", err)
		}
		if snap == nil {
			return nil, fmt.Errorf("previous: %w: null snapshot", domain.ErrDataShape)
		}
		if err := snap.Validate(); err != nil {
			return nil, fmt.Errorf("previous: %w", err)
		}
		st.Snapshot = snap
	}

	return st, nil
}

func encodeState(st *domain.State) (map[document][]byte, error) {
	if err := st.Registry.Validate(); err != nil {
		return nil, err
	}
	if err := st.Season.Validate(); err != nil {
		return nil, err
	}
	if st.Snapshot == nil {
		st.Snapshot = domain.Snapshot{}
	}
	if err := st.Snapshot.Validate(); err != nil {
		return nil, err
	}

	out := make(map[document][]byte, len(documents))
	for doc, v := range map[document]any{
		docPlayers:  st.Registry,
		docSeasonal: st.Season,
		docPrevious: st.Snapshot,
	} {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", doc, err)
		}
		out[doc] = append(b, '\n')
	}
	return out, nil
}

// changed returns the documents whose encoding differs between two encoded states.
func changed(before, after map[document][]byte) []document {
	var out []document
	for _, doc := range documents {
		if !bytes.Equal(before[doc], after[doc]) {
			out = append(out, doc)
		}
	}
	return out
}
