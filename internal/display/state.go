package display

import "encoding/json"

// State is the complete description of what a viewer screen should show.
//
// SlideType is opaque JSON: the server relays it between operator consoles
// and viewers without interpreting it, so clients can evolve their slide
// vocabulary without server changes. A nil SlideType marshals as null.
type State struct {
	ID        string            `json:"id"`
	Content   map[string]string `json:"content"`
	SlideType json.RawMessage   `json:"slide_type"`
}

// NewState returns the boot state: empty id, empty (not null) content map,
// null slide type.
func NewState() State {
	return State{
		ID:      "",
		Content: map[string]string{},
	}
}

// Clone returns a deep copy, so a snapshot handed to one subscriber cannot
// be mutated through another's map reference.
func (s State) Clone() State {
	out := State{ID: s.ID}
	if s.Content != nil {
		out.Content = make(map[string]string, len(s.Content))
		for k, v := range s.Content {
			out.Content[k] = v
		}
	}
	if s.SlideType != nil {
		out.SlideType = make(json.RawMessage, len(s.SlideType))
		copy(out.SlideType, s.SlideType)
	}
	return out
}
