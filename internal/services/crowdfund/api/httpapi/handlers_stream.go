package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
)

// Stream delivers committed campaign events to live subscribers.
type Stream interface {
	Subscribe(campaignID string) (<-chan event.Event, func())
}

// streamEvents relays committed events as server-sent events until the
// client disconnects or falls too far behind.
func (h *handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, apperrors.New(apperrors.CodeNotFound, "event stream is disabled"))
		return
	}
	id := campaignID(r)
	if _, err := h.svc.Campaign(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	events, cancel := h.stream.Subscribe(id)
	defer cancel()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": subscribed\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.log.Warn("event stream flush unsupported", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				// The bus dropped this subscriber for falling behind; the
				// client resumes from /events.
				_, _ = fmt.Fprint(w, "event: overflow\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			data, err := json.Marshal(newEventView(evt))
			if err != nil {
				h.log.Error("encode stream event", "campaign_id", id, "seq", evt.Seq, "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Type, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
