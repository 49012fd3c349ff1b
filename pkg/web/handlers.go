package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-fer/pkg/hub"
	"github.com/teslashibe/go-fer/pkg/pipeline"
	"github.com/teslashibe/go-fer/pkg/protocol"
)

func (s *Server) status() protocol.StatusData {
	st := protocol.StatusData{
		Active:  s.ctrl.Active(),
		Viewers: s.resultHub.ClientCount() + s.cameraHub.ClientCount(),
	}
	if info, ok := s.ctrl.Info(); ok {
		st.Session = sessionData(info)
	}
	if m := s.ctrl.Metrics(); m != nil {
		snap := m.Snapshot()
		st.Jobs = int(snap.Jobs)
		st.Failed = int(snap.Failed)
		st.Faces = int(snap.Faces)
		st.Average = timing(snap.Average)
	}
	return st
}

// handleStatus returns the session state and metrics
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleResults returns recent results, newest last. ?limit=n trims the list.
func (s *Server) handleResults(c *fiber.Ctx) error {
	results := s.Results()
	if limit := c.QueryInt("limit", 0); limit > 0 && limit < len(results) {
		results = results[len(results)-limit:]
	}
	return c.JSON(results)
}

// handleCapture triggers one capture on the active session
func (s *Server) handleCapture(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CaptureTimeout)
	defer cancel()

	id, err := s.ctrl.Capture(ctx)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, pipeline.ErrNotActive) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": id})
}

// handleResume opens a session
func (s *Server) handleResume(c *fiber.Ctx) error {
	if err := s.ctrl.Resume(); err != nil {
		s.logger.Error("resume failed", "error", err)
		status := fiber.StatusInternalServerError
		if errors.Is(err, pipeline.ErrSessionClosed) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	s.broadcastStatus()
	return c.JSON(s.status())
}

// handlePause tears the session down
func (s *Server) handlePause(c *fiber.Ctx) error {
	if err := s.ctrl.Pause(); err != nil {
		s.logger.Error("pause failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.broadcastStatus()
	return c.JSON(s.status())
}

// handleResultsWS streams result, notice and status messages
func (s *Server) handleResultsWS(c *websocket.Conn) {
	var greeting []hub.Message
	if msg, err := protocol.NewStatusMessage(s.status()); err == nil {
		if m, err := hub.Encode(msg); err == nil {
			greeting = append(greeting, m)
		}
	}
	hub.NewClient(s.resultHub, c, greeting...).Run()
}

// handleCameraWS streams annotated JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
