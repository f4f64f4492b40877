package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SerializedState is the persisted projection of a TrackCollection
type SerializedState struct {
	Tracks        map[string]SerializedTrack `json:"tracks"`
	ActiveTrackID string                     `json:"activeTrackId"`
	TrackOrder    []string                   `json:"trackOrder"`
}

// SerializedTrack is the current on-disk shape of a single track
type SerializedTrack struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Items []SerializedItem `json:"items"`
}

// SerializedItem is one staged file in its persisted form
type SerializedItem struct {
	URI      string `json:"uri"`
	IsPinned bool   `json:"isPinned"`
}

// recordShape tags which known layout a persisted track record uses
type recordShape int

const (
	shapeEmpty   recordShape = iota // neither items nor uris present
	shapeCurrent                    // {id, name, items}
	shapeLegacy                     // {id, name, uris}
)

// String returns a human-readable name for the shape
func (s recordShape) String() string {
	switch s {
	case shapeCurrent:
		return "current"
	case shapeLegacy:
		return "legacy"
	default:
		return "empty"
	}
}

// rawTrackRecord accepts both known layouts so the shape can be classified
type rawTrackRecord struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Items *[]SerializedItem `json:"items"`
	URIs  *[]string         `json:"uris"`
}

func (r rawTrackRecord) shape() recordShape {
	switch {
	case r.Items != nil:
		return shapeCurrent
	case r.URIs != nil:
		return shapeLegacy
	default:
		return shapeEmpty
	}
}

// normalize converts any recognized shape into the current layout
func (r rawTrackRecord) normalize() SerializedTrack {
	out := SerializedTrack{ID: r.ID, Name: r.Name, Items: []SerializedItem{}}
	switch r.shape() {
	case shapeCurrent:
		out.Items = append(out.Items, (*r.Items)...)
	case shapeLegacy:
		for _, uri := range *r.URIs {
			out.Items = append(out.Items, SerializedItem{URI: uri, IsPinned: false})
		}
	}
	return out
}

// UnmarshalJSON decodes a track record in either the current or the legacy layout
func (t *SerializedTrack) UnmarshalJSON(data []byte) error {
	var raw rawTrackRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = raw.normalize()
	return nil
}

// Serialize projects a TrackCollection into its persisted JSON form
func Serialize(c *TrackCollection) ([]byte, error) {
	state := SerializedState{
		Tracks:        make(map[string]SerializedTrack, len(c.Tracks)),
		ActiveTrackID: c.ActiveTrackID,
		TrackOrder:    append([]string{}, c.Order...),
	}

	for id, track := range c.Tracks {
		st := SerializedTrack{ID: track.ID, Name: track.Name, Items: make([]SerializedItem, 0, len(track.Files))}
		for _, f := range track.Files {
			st.Items = append(st.Items, SerializedItem{URI: f.ID, IsPinned: f.IsPinned})
		}
		state.Tracks[id] = st
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal track state: %w", err)
	}
	return data, nil
}

// Deserialize decodes persisted state, upgrading legacy track records on the way.
// The returned collection may be empty or reference a missing active track;
// the caller is responsible for repairing those invariants.
func Deserialize(data []byte) (*TrackCollection, error) {
	var state SerializedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal track state: %w", err)
	}

	c := NewTrackCollection()
	c.ActiveTrackID = state.ActiveTrackID

	for key, st := range state.Tracks {
		id := st.ID
		if id == "" {
			id = key
		}
		track := &ContextTrack{ID: id, Name: st.Name, Files: []StagedFile{}}
		seen := make(map[string]bool, len(st.Items))
		for _, item := range st.Items {
			if item.URI == "" || seen[item.URI] {
				continue
			}
			seen[item.URI] = true
			f := NewStagedFile(item.URI)
			f.IsPinned = item.IsPinned
			track.Files = append(track.Files, f)
		}
		c.Tracks[id] = track
	}

	// Persisted order first, then any unlisted tracks in id order
	listed := make(map[string]bool, len(state.TrackOrder))
	for _, id := range state.TrackOrder {
		if _, ok := c.Tracks[id]; ok && !listed[id] {
			listed[id] = true
			c.Order = append(c.Order, id)
		}
	}
	var rest []string
	for id := range c.Tracks {
		if !listed[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	c.Order = append(c.Order, rest...)

	return c, nil
}
