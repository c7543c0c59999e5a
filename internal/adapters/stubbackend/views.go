package stubbackend

import "sync"

// ViewLog records which titles each user opened, in order.
type ViewLog struct {
	mu     sync.Mutex
	byUser map[string][]string
}

// NewViewLog creates an empty log.
func NewViewLog() *ViewLog {
	return &ViewLog{byUser: map[string][]string{}}
}

// Add appends a view.
func (v *ViewLog) Add(userID, title string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byUser[userID] = append(v.byUser[userID], title)
}

// For returns a copy of the user's views.
func (v *ViewLog) For(userID string) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.byUser[userID]...)
}
