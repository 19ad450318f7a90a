package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// StreamManager fans lifecycle events out to SSE subscribers by session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- StreamEvent]struct{} // SessionID -> Set of Channels
}

// StreamEvent is one encoded lifecycle event.
type StreamEvent struct {
	Type    domain.EventType
	Payload string
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- StreamEvent]struct{}),
	}
}

// Subscribe registers a listener for sessionID. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan StreamEvent, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan StreamEvent, 32)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- StreamEvent]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
		})
	}
}

// Subscribers returns the number of listeners for sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

func (sm *StreamManager) broadcast(sessionID string, typ domain.EventType, event any) {
	if sessionID == "" {
		return
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs, ok := sm.subscribers[sessionID]
	if !ok {
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		slog.Warn("SSE: event encode failed", "session_id", sessionID, "err", err)
		return
	}
	msg := StreamEvent{Type: typ, Payload: string(b)}
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			slog.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// withError adds the event error, which is not serialized, as an "error" field.
func withError(e any, err error) any {
	if err == nil {
		return e
	}
	b, _ := json.Marshal(e)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	m["error"] = err.Error()
	return m
}

// Hooks publishes run, stage and tool events to the subscribers of the run's session.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			sm.broadcast(domain.SessionIDFrom(ctx), e.Type, e)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			sm.broadcast(domain.SessionIDFrom(ctx), e.Type, withError(e, e.Err))
		},
		OnStageStart: func(ctx context.Context, e *domain.StageEvent) {
			sm.broadcast(domain.SessionIDFrom(ctx), e.Type, e)
		},
		OnStageEnd: func(ctx context.Context, e *domain.StageEvent) {
			sm.broadcast(domain.SessionIDFrom(ctx), e.Type, withError(e, e.Err))
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			sm.broadcast(domain.SessionIDFrom(ctx), e.Type, e)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			sm.broadcast(domain.SessionIDFrom(ctx), e.Type, e)
		},
	}
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
// The optional types query parameter filters by event type, e.g. ?types=stage_end,run_end.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	watch := map[domain.EventType]bool{}
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			watch[domain.EventType(strings.TrimSpace(t))] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to session events", "session_id", sessionID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !watch[msg.Type] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Payload)
			flusher.Flush()
		}
	}
}
