package app

import (
	"testing"
	"time"

	"realtime_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingTracker_ExpiresWithoutOffEvent(t *testing.T) {
	tr := NewTypingTracker(30 * time.Millisecond)
	expired := &recorder[domain.TypingIndicator]{}

	out := tr.Observe(domain.TypingIndicator{UserID: "A", ConversationID: "A", IsTyping: true, Timestamp: time.Now()}, expired.add)
	assert.True(t, out.IsTyping)
	assert.True(t, tr.IsTyping("A", "A"))
	assert.Equal(t, []string{"A"}, tr.Typing("A"))

	require.Eventually(t, func() bool { return expired.len() == 1 }, waitFor, tick)
	assert.False(t, expired.all()[0].IsTyping)
	assert.Equal(t, "A", expired.all()[0].UserID)
	assert.False(t, tr.IsTyping("A", "A"))
}

func TestTypingTracker_RefreshRestartsTimer(t *testing.T) {
	tr := NewTypingTracker(60 * time.Millisecond)
	expired := &recorder[domain.TypingIndicator]{}

	for i := 0; i < 4; i++ {
		tr.Observe(domain.TypingIndicator{UserID: "A", ConversationID: "G1", IsTyping: true, Timestamp: time.Now()}, expired.add)
		time.Sleep(25 * time.Millisecond)
	}
	assert.Equal(t, 0, expired.len())
	assert.True(t, tr.IsTyping("G1", "A"))

	require.Eventually(t, func() bool { return expired.len() == 1 }, waitFor, tick)
}

func TestTypingTracker_OffCancelsTimer(t *testing.T) {
	tr := NewTypingTracker(20 * time.Millisecond)
	expired := &recorder[domain.TypingIndicator]{}

	tr.Observe(domain.TypingIndicator{UserID: "A", ConversationID: "A", IsTyping: true, Timestamp: time.Now()}, expired.add)
	out := tr.Observe(domain.TypingIndicator{UserID: "A", ConversationID: "A", IsTyping: false, Timestamp: time.Now()}, expired.add)
	assert.False(t, out.IsTyping)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, expired.len())
	assert.False(t, tr.IsTyping("A", "A"))
}

func TestTypingTracker_StaleIndicatorIsNotTyping(t *testing.T) {
	tr := NewTypingTracker(time.Second)
	out := tr.Observe(domain.TypingIndicator{
		UserID:         "A",
		ConversationID: "A",
		IsTyping:       true,
		Timestamp:      time.Now().Add(-5 * time.Second),
	}, func(domain.TypingIndicator) {})

	assert.False(t, out.IsTyping)
	assert.False(t, tr.IsTyping("A", "A"))
}

func TestTypingTracker_Reset(t *testing.T) {
	tr := NewTypingTracker(20 * time.Millisecond)
	expired := &recorder[domain.TypingIndicator]{}
	tr.Observe(domain.TypingIndicator{UserID: "A", ConversationID: "A", IsTyping: true}, expired.add)

	tr.Reset()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, expired.len())
	assert.Empty(t, tr.Typing("A"))
}
