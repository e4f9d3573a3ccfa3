package reservation

// Entry is the reservation record of a single resource.
// Count is zero exactly when Holder is empty.
type Entry struct {
	Holder string `json:"holder,omitempty"`
	Count  int    `json:"count"`
}

// IsFree reports whether no client holds the resource.
func (e *Entry) IsFree() bool {
	return e.Count == 0
}

// IsAvailableFor reports whether clientID may allocate the resource: it is
// either free or already held by clientID.
func (e *Entry) IsAvailableFor(clientID string) bool {
	return e.Count == 0 || e.Holder == clientID
}

// IsHeldBy reports whether clientID currently holds the resource.
func (e *Entry) IsHeldBy(clientID string) bool {
	return e.Count > 0 && e.Holder == clientID
}

func (e *Entry) reset() {
	e.Holder = ""
	e.Count = 0
}
