// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devpulsehq/devpulse/services/insight/telemetry"
)

var upgrader = websocket.Upgrader{
	// The API serves a local single-user tool; any origin may connect.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// sendJSON writes a JSON message, logging delivery failures.
func sendJSON(ws *websocket.Conn, v any) error {
	if err := ws.WriteJSON(v); err != nil {
		slog.Warn("Failed to send websocket message", "error", err)
		return err
	}
	return nil
}

// HandleSeedProgress streams seed run progress over a websocket.
//
// GET /devpulse/seed/progress
//
// On connect the client receives a session_created message and a
// snapshot of the current seed status, then one message per event.
// The stream stays open across runs until the client disconnects.
func (h *Handlers) HandleSeedProgress(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	sessionID := uuid.NewString()
	logger := telemetry.LoggerWithSession(c.Request.Context(), h.logger, sessionID)
	logger.Info("Seed progress stream connected")

	if err := sendJSON(ws, map[string]any{
		"action":     ActionSessionCreated,
		"session_id": sessionID,
	}); err != nil {
		return
	}
	if err := sendJSON(ws, map[string]any{
		"action": ActionStatus,
		"status": h.seed.snapshot(),
	}); err != nil {
		return
	}

	events, cancel := h.seed.hub.subscribe()
	defer cancel()

	// The client never sends data; the read pump only surfaces the
	// close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			logger.Info("Seed progress stream disconnected")
			return
		case ev := <-events:
			if err := sendJSON(ws, ev); err != nil {
				return
			}
		}
	}
}
