package dialogue

// Details maps a field to the value collected for it. A missing key means not yet collected.
type Details map[Field]string

// State is the per-session dialogue snapshot.
// AskingForDetails is empty when no answer is awaited.
type State struct {
	Details          Details `json:"details"`
	AskingForDetails Field   `json:"askingForDetails,omitempty"`
}

// Clone returns a deep copy, so callers never share the details map.
func (s State) Clone() State {
	out := State{
		Details:          make(Details, len(s.Details)),
		AskingForDetails: s.AskingForDetails,
	}
	for k, v := range s.Details {
		out.Details[k] = v
	}
	return out
}

// Awaiting reports whether the next text message answers a field.
func (s State) Awaiting() bool {
	return s.AskingForDetails != ""
}

// NextMissing returns the first field, in schema order, without a non-empty value.
func (s State) NextMissing() (Field, bool) {
	for _, f := range Fields {
		if s.Details[f] == "" {
			return f, true
		}
	}
	return "", false
}

// IsValidDetails reports whether every field holds a non-empty value.
func (s State) IsValidDetails() bool {
	_, missing := s.NextMissing()
	return !missing
}

// StringMap returns the details keyed by plain field names.
func (d Details) StringMap() map[string]string {
	out := make(map[string]string, len(d))
	for k, v := range d {
		out[string(k)] = v
	}
	return out
}

// Empty is the state of a session that has told us nothing.
func Empty() State {
	return State{Details: Details{}}
}
