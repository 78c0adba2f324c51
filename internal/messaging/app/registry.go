package app

import (
	"sync"

	"realtime_messaging_service/internal/messaging/domain"
)

// MessageHandler receives inserts and status updates of one conversation
type MessageHandler func(domain.MessageEvent)

// TypingHandler receives typing indicators of one conversation
type TypingHandler func(domain.TypingIndicator)

// StatusHandler receives presence changes of any user
type StatusHandler func(domain.PresenceStatus)

// NotificationHandler receives notifications created for the local user
type NotificationHandler func(domain.Notification)

// handlerRegistry one handler per conversation id; registering again replaces, never merges
type handlerRegistry struct {
	mu           sync.RWMutex
	messages     map[string]MessageHandler
	typing       map[string]TypingHandler
	status       StatusHandler
	notification NotificationHandler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{
		messages: make(map[string]MessageHandler),
		typing:   make(map[string]TypingHandler),
	}
}

func (r *handlerRegistry) setMessage(conversationID string, h MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.messages, conversationID)
		return
	}
	r.messages[conversationID] = h
}

func (r *handlerRegistry) removeMessage(conversationID string) {
	r.setMessage(conversationID, nil)
}

func (r *handlerRegistry) message(conversationID string) (MessageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.messages[conversationID]
	return h, ok
}

func (r *handlerRegistry) setTyping(conversationID string, h TypingHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.typing, conversationID)
		return
	}
	r.typing[conversationID] = h
}

func (r *handlerRegistry) removeTyping(conversationID string) {
	r.setTyping(conversationID, nil)
}

func (r *handlerRegistry) typingHandler(conversationID string) (TypingHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.typing[conversationID]
	return h, ok
}

func (r *handlerRegistry) setStatus(h StatusHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = h
}

func (r *handlerRegistry) statusHandler() StatusHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *handlerRegistry) setNotification(h NotificationHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notification = h
}

func (r *handlerRegistry) notificationHandler() NotificationHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notification
}

func (r *handlerRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = make(map[string]MessageHandler)
	r.typing = make(map[string]TypingHandler)
	r.status = nil
	r.notification = nil
}
