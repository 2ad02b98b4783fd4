package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"grid-agent-service/internal/domain"
	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/infra/logging"
	"grid-agent-service/internal/infra/metrics"
)

// wireEvent is the JSON shape sent over the WebSocket.
type wireEvent struct {
	Type      string `json:"type"`
	Detail    string `json:"detail"`
	Timestamp string `json:"ts"`
	NodeID    string `json:"nodeId,omitempty"`
	NodeLabel string `json:"nodeLabel,omitempty"`
	Progress  int    `json:"progress,omitempty"`
}

func toWire(ev *model.Event) wireEvent {
	return wireEvent{
		Type:      string(ev.Type),
		Detail:    ev.Detail,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		NodeID:    ev.NodeID,
		NodeLabel: ev.NodeLabel,
		Progress:  ev.Progress,
	}
}

// handleStream upgrades to WebSocket and relays the job's event stream
// until the channel drains. The server closes the connection after the
// terminal event; a client disconnect cancels the subscription without
// touching the producer.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	log := logging.With(logging.WithJobID(r.Context(), jobID), s.log)

	if jobID == "" {
		metrics.IncStreamReject("missing_job_id")
		http.Error(w, "jobId query parameter is required", http.StatusBadRequest)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The request context dies with the handshake response; the stream
	// lives until the client goes away or the channel drains.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				return
			}
		}
	}()

	events, err := s.jobUC.Attach(ctx, jobID)
	if err != nil {
		s.rejectStream(conn, log, err)
		return
	}

	metrics.StreamAttached()
	defer metrics.StreamDetached()
	log.Debug().Msg("stream attached")

	for ev := range events {
		data, err := json.Marshal(toWire(ev))
		if err != nil {
			log.Error().Err(err).Msg("event marshal failed")
			return
		}
		if err := wsutil.WriteServerText(conn, data); err != nil {
			log.Debug().Err(err).Msg("stream write failed, client gone")
			return
		}
	}

	// Channel drained: the terminal event has been delivered.
	_ = ws.WriteFrame(conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
}

// rejectStream sends a single ERROR frame explaining the refusal, then
// closes the socket.
func (s *Server) rejectStream(conn net.Conn, log *zerolog.Logger, err error) {
	var reason, detail string
	switch {
	case errors.Is(err, domain.ErrNotFound):
		reason, detail = "not_found", "job not found"
	case errors.Is(err, domain.ErrAlreadySubscribed):
		reason, detail = "already_subscribed", "job stream already has a subscriber"
	default:
		reason, detail = "internal", "stream unavailable"
		log.Error().Err(err).Msg("stream attach failed")
	}
	metrics.IncStreamReject(reason)

	frame := wireEvent{
		Type:      string(model.EventError),
		Detail:    detail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if data, mErr := json.Marshal(frame); mErr == nil {
		_ = wsutil.WriteServerText(conn, data)
	}
	_ = ws.WriteFrame(conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusPolicyViolation, reason)))
}
