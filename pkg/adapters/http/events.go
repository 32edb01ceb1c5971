package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/stepwise/pkg/domain"
)

// SubscribeEvents handles the GET /chains/{id}/events request (SSE).
// The first data frame is the current snapshot; a "done" event closes the stream
// once the chain reached a terminal status.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	chainID := chi.URLParam(r, "id")
	diffMode := r.URL.Query().Get("mode") == "diff"

	// Subscribe before reading the snapshot so no update falls in between.
	ch, cancel, err := s.Chains.Subscribe(r.Context(), chainID)
	if err != nil {
		s.chainError(w, "SubscribeEvents", err)
		return
	}
	defer cancel()

	current, err := s.Chains.Snapshot(r.Context(), chainID)
	if err != nil {
		s.chainError(w, "SubscribeEvents", err)
		return
	}

	s.Logger.Info("SSE: Subscribing to chain updates", "chain_id", chainID, "diff", diffMode)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")

	send := func(prev, next *domain.ChainSnapshot) bool {
		var payload any = next
		if diffMode {
			var from *domain.Emission
			if prev != nil {
				from = &prev.Emission
			}
			diff := domain.Diff(from, &next.Emission)
			if prev != nil && diff.Empty() {
				return false
			}
			payload = diff
		}
		data, err := json.Marshal(payload)
		if err != nil {
			s.Logger.Error("SSE: encode failed", "error", err)
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		return true
	}
	done := func(status domain.ChainStatus) {
		fmt.Fprintf(w, "event: done\ndata: %s\n\n", status)
		flusher.Flush()
	}

	send(nil, current)
	flusher.Flush()
	if current.Status.Terminal() {
		done(current.Status)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE Client Disconnected", "chain_id", chainID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var next domain.ChainSnapshot
			if err := json.Unmarshal(msg, &next); err != nil {
				s.Logger.Warn("SSE: dropping undecodable update", "chain_id", chainID, "error", err)
				continue
			}
			// Updates queued before the snapshot was read carry nothing new.
			if len(next.Emission.Transcript) < len(current.Emission.Transcript) {
				continue
			}
			if !next.UpdatedAt.After(current.UpdatedAt) && next.Status == current.Status {
				continue
			}
			if send(current, &next) {
				flusher.Flush()
			}
			current = &next
			if current.Status.Terminal() {
				done(current.Status)
				return
			}
		}
	}
}
