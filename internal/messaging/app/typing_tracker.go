package app

import (
	"sync"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
)

// DefaultTypingTTL an indicator not refreshed within it counts as stopped
const DefaultTypingTTL = 4 * time.Second

type typingEntry struct {
	indicator domain.TypingIndicator
	timer     *time.Timer
}

// TypingTracker clears typing indicators that were not refreshed, even if the off event was lost
type TypingTracker struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*typingEntry
}

// NewTypingTracker create TypingTracker
func NewTypingTracker(ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*typingEntry),
	}
}

func typingKey(conversationID, userID string) string {
	return conversationID + "\x00" + userID
}

// Observe record an indicator and return the value consumers should see. A typing=true
// indicator arms a timer that hands a synthetic typing=false to expire after the TTL.
func (t *TypingTracker) Observe(ind domain.TypingIndicator, expire func(domain.TypingIndicator)) domain.TypingIndicator {
	now := t.now()
	if ind.Timestamp.IsZero() || ind.Timestamp.After(now) {
		ind.Timestamp = now
	}
	if ind.IsTyping && ind.IsStale(now, t.ttl) {
		ind.IsTyping = false
	}

	key := typingKey(ind.ConversationID, ind.UserID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.entries[key]; ok {
		old.timer.Stop()
		delete(t.entries, key)
	}
	if !ind.IsTyping {
		return ind
	}

	remaining := t.ttl - now.Sub(ind.Timestamp)
	entry := &typingEntry{indicator: ind}
	entry.timer = time.AfterFunc(remaining, func() {
		t.mu.Lock()
		current, ok := t.entries[key]
		if !ok || current != entry {
			t.mu.Unlock()
			return
		}
		delete(t.entries, key)
		t.mu.Unlock()

		expire(domain.TypingIndicator{
			UserID:         ind.UserID,
			ConversationID: ind.ConversationID,
			IsTyping:       false,
			Timestamp:      t.now(),
		})
	})
	t.entries[key] = entry
	return ind
}

// IsTyping whether userID is currently typing in the conversation
func (t *TypingTracker) IsTyping(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[typingKey(conversationID, userID)]
	return ok && entry.indicator.Active(t.now(), t.ttl)
}

// Typing users currently typing in the conversation
func (t *TypingTracker) Typing(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var users []string
	for _, entry := range t.entries {
		if entry.indicator.ConversationID == conversationID && entry.indicator.Active(now, t.ttl) {
			users = append(users, entry.indicator.UserID)
		}
	}
	return users
}

// Reset stop every timer
func (t *TypingTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, entry := range t.entries {
		entry.timer.Stop()
		delete(t.entries, key)
	}
}
