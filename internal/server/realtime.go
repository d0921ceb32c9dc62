package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ButyrinIA/socials/internal/realtime"
	"github.com/ButyrinIA/socials/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handlePostsFeed сообщает о новых постах рабочего аккаунта
func (s *Server) handlePostsFeed(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.resolveScope(w, r)
	if !ok {
		return
	}
	s.stream(w, r, realtime.PostsTopic(scope.AccountID))
}

// handleCommentsFeed сообщает о новых комментариях поста
func (s *Server) handleCommentsFeed(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	if _, err := s.storage.GetPost(r.Context(), postID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.log.Error("get post failed", zap.Error(err), zap.String("post_id", postID))
		http.Error(w, "Failed to load content", http.StatusServiceUnavailable)
		return
	}
	s.stream(w, r, realtime.CommentsTopic(postID))
}

// stream пересылает события темы в websocket до закрытия соединения
// клиентом или остановки сервера. События несут только идентификаторы,
// клиент перечитывает данные сам.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.hub.Subscribe(ctx, topic)

	// Чтение нужно только для обработки pong и обнаружения закрытия
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	s.log.Debug("websocket subscribed", zap.String("topic", topic))
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug("websocket write failed", zap.Error(err), zap.String("topic", topic))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}
