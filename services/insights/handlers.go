// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package insights

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the uniform error payload for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// getOrCreateRequestID returns the caller's X-Request-ID or generates one,
// and echoes it on the response for correlation.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// Handlers holds the HTTP handlers for the insights service.
//
// Thread Safety: Safe for concurrent use; all state lives in Service.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handler set over a service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleAsk handles POST /v1/insights/ask.
//
// Description:
//
//	Answers a natural-language question over raw query results and
//	synthesizes a chart when the question asks for one. A null chart in
//	the response is a normal outcome, not an error.
//
// Response:
//
//	200 OK: AskResponse
//	400 Bad Request: Malformed body or empty question
//	500 Internal Server Error: Storage failure
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleAsk(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAsk")

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.service.Ask(c.Request.Context(), req)
	if err != nil {
		logger.Error("ask failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "ASK_FAILED",
		})
		return
	}

	logger.Info("question answered",
		slog.String("session", resp.SessionID),
		slog.Bool("chart", resp.Chart != nil))
	c.JSON(http.StatusOK, resp)
}

// uploadResponse is the payload for spreadsheet uploads and previews.
type uploadResponse struct {
	SessionID string     `json:"session_id"`
	Columns   []string   `json:"columns"`
	Rows      int        `json:"rows"`
	Preview   [][]string `json:"preview"`
}

// HandleUpload handles POST /v1/insights/spreadsheet/upload.
//
// Description:
//
//	Accepts a multipart "file" field (.xlsx or .csv), validates that it
//	parses, and binds it to the session given in the optional
//	"session_id" form field (a new session is created otherwise).
//
// Response:
//
//	200 OK: uploadResponse
//	400 Bad Request: Missing file, oversized upload, or unparseable data
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleUpload(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUpload")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "file field is required",
			Code:  "MISSING_FILE",
		})
		return
	}
	if fileHeader.Size > h.service.cfg.Server.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "file exceeds the upload size limit",
			Code:  "FILE_TOO_LARGE",
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		logger.Error("could not open upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "could not read upload",
			Code:  "UPLOAD_READ_FAILED",
		})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.service.cfg.Server.MaxUploadBytes+1))
	if err != nil {
		logger.Error("could not read upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "could not read upload",
			Code:  "UPLOAD_READ_FAILED",
		})
		return
	}
	if int64(len(data)) > h.service.cfg.Server.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "file exceeds the upload size limit",
			Code:  "FILE_TOO_LARGE",
		})
		return
	}

	sessionID, table, err := h.service.SaveUpload(
		c.Request.Context(), c.PostForm("session_id"), fileHeader.Filename, data)
	if err != nil {
		logger.Warn("upload rejected", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_SPREADSHEET",
		})
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		SessionID: sessionID,
		Columns:   table.Columns,
		Rows:      table.Len(),
		Preview:   table.Preview(),
	})
}

// HandlePreview handles GET /v1/insights/spreadsheet/:session.
//
// Response:
//
//	200 OK: uploadResponse
//	404 Not Found: Session has no uploaded spreadsheet
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandlePreview(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePreview")

	sessionID := c.Param("session")
	table, err := h.service.SessionTable(c.Request.Context(), sessionID)
	if err != nil {
		logger.Debug("preview miss",
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no spreadsheet for session",
			Code:  "SESSION_NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		SessionID: sessionID,
		Columns:   table.Columns,
		Rows:      table.Len(),
		Preview:   table.Preview(),
	})
}

// HandleHealth handles GET /v1/insights/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/insights/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
