package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"care-ats/internal/sender"
)

const maxBatch = 500

type MessagesHandler struct {
	outbox Outbox
}

type enqueueRequest struct {
	Messages []sender.Message `json:"messages"`
}

type enqueueResponse struct {
	Queued []sender.Message `json:"queued"`
	Status sender.Status    `json:"status"`
}

// Enqueue queues a batch for the bulk sender.
func (h *MessagesHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, "messages is required", http.StatusBadRequest)
		return
	}
	if len(req.Messages) > maxBatch {
		writeError(w, "too many messages", http.StatusBadRequest)
		return
	}
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Text) == "" {
			writeError(w, "every message needs text", http.StatusBadRequest)
			return
		}
	}

	queued, err := h.outbox.Enqueue(req.Messages...)
	if err != nil {
		writeSenderError(w, err)
		return
	}
	writeJSON(w, enqueueResponse{Queued: queued, Status: h.outbox.Status()}, http.StatusAccepted)
}

func (h *MessagesHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.outbox.Pause(); err != nil {
		writeSenderError(w, err)
		return
	}
	writeJSON(w, h.outbox.Status(), http.StatusOK)
}

func (h *MessagesHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if err := h.outbox.Resume(); err != nil {
		writeSenderError(w, err)
		return
	}
	writeJSON(w, h.outbox.Status(), http.StatusOK)
}

func (h *MessagesHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.outbox.Status(), http.StatusOK)
}

func writeSenderError(w http.ResponseWriter, err error) {
	if errors.Is(err, sender.ErrStopped) {
		writeError(w, "sender is not running", http.StatusServiceUnavailable)
		return
	}
	writeError(w, err.Error(), http.StatusInternalServerError)
}
