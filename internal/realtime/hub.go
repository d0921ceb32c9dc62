// Package realtime рассылает уведомления об изменениях постов и комментариев.
// Событие содержит только идентификаторы: клиент перечитывает список сам.
package realtime

import (
	"context"
	"sync"
)

type Kind string

const (
	KindPostCreated    Kind = "post_created"
	KindCommentCreated Kind = "comment_created"
)

type Event struct {
	Kind      Kind   `json:"kind"`
	PostID    string `json:"postId"`
	CommentID string `json:"commentId,omitempty"`
	OwnerID   string `json:"ownerId"`
}

// PostsTopic - изменения постов аккаунта
func PostsTopic(ownerID string) string { return "posts:" + ownerID }

// CommentsTopic - изменения комментариев поста
func CommentsTopic(postID string) string { return "comments:" + postID }

type subscriber struct {
	ch chan Event
}

// Hub хранит подписчиков по темам. Медленный подписчик не блокирует
// публикацию: если в его буфере уже есть событие, новое отбрасывается,
// так как оба приводят к одному и тому же перечитыванию.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*subscriber]struct{})}
}

// Subscribe возвращает канал событий темы. Канал закрывается после отмены ctx.
func (h *Hub) Subscribe(ctx context.Context, topic string) <-chan Event {
	sub := &subscriber{ch: make(chan Event, 1)}

	h.mu.Lock()
	if _, exists := h.topics[topic]; !exists {
		h.topics[topic] = make(map[*subscriber]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	h.mu.Unlock()

	// Очистка после завершения подписки
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		if subs, exists := h.topics[topic]; exists {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
		close(sub.ch)
		h.mu.Unlock()
	}()

	return sub.ch
}

func (h *Hub) Publish(topic string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[topic] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Subscribers - число подписчиков темы
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
