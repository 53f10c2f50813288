package keyboard

// Slot is the storage for one physical button. It always holds exactly one
// Action; Set replaces it in place.
type Slot struct {
	action Action
}

// Set replaces the held action
func (s *Slot) Set(a Action) {
	s.action = a
}

// Reset makes the slot inert
func (s *Slot) Reset() {
	s.action = Action{}
}

// Get returns a copy of the held action
func (s *Slot) Get() Action {
	return s.action
}

// Action borrows the held action
func (s *Slot) Action() *Action {
	return &s.action
}

// Activate fires the held action's press message
func (s *Slot) Activate(send SendFunc) error {
	return s.action.Activate(send)
}

// Deactivate fires the held action's release message
func (s *Slot) Deactivate(send SendFunc) error {
	return s.action.Deactivate(send)
}
