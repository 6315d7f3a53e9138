package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	stdpath "path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/filebridge/internal/realtime"
	"github.com/charlesng35/filebridge/internal/remotefs"
	"github.com/charlesng35/filebridge/internal/services"
	apperrors "github.com/charlesng35/filebridge/pkg/errors"
	"github.com/charlesng35/filebridge/pkg/logger"
	"github.com/charlesng35/filebridge/pkg/metrics"
	"github.com/charlesng35/filebridge/pkg/response"
)

// maxInlineFileBytes caps the content endpoint; larger files must use the
// streaming endpoint instead.
const maxInlineFileBytes = 4 << 20

// sessionSource resolves a pool member to its filesystem surface.
type sessionSource interface {
	Get(name string) (remotefs.FileSystem, error)
}

// FilesHandler exposes remote file operations over pooled sessions.
type FilesHandler struct {
	sessions  sessionSource
	audit     *services.AuditService
	broadcast func(stream string, message realtime.Message)
}

// NewFilesHandler constructs a files handler. The audit service and hub are
// optional; absent dependencies disable the corresponding side effects.
func NewFilesHandler(sessions sessionSource, audit *services.AuditService, hub *realtime.Hub) *FilesHandler {
	h := &FilesHandler{sessions: sessions, audit: audit}
	if hub != nil {
		h.broadcast = hub.BroadcastStream
	}
	return h
}

type filesListResponse struct {
	Path    string   `json:"path"`
	Entries []string `json:"entries"`
}

type fileStatResponse struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Access     string    `json:"access"`
	AccessedAt time.Time `json:"accessed_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

type fileContentResponse struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// List enumerates entry names within the requested directory, preserving the
// order the remote server reported them in.
func (h *FilesHandler) List(c *gin.Context) {
	if h == nil || h.sessions == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	name, fs, cleanPath, ok := h.resolve(c)
	if !ok {
		return
	}

	start := time.Now()
	names, err := fs.ListDir(requestContext(c), cleanPath)
	observeRemoteOp(name, "list", start, err)
	if err != nil {
		h.recordAudit(c, "files.list", name, cleanPath, "error", nil)
		response.Error(c, mapRemoteError(err))
		return
	}

	entries := make([]string, 0, len(names))
	entries = append(entries, names...)

	h.recordAudit(c, "files.list", name, cleanPath, "success", map[string]any{"entries": len(entries)})
	response.Success(c, http.StatusOK, filesListResponse{Path: cleanPath, Entries: entries})
}

// Metadata returns the attribute snapshot for a single path.
func (h *FilesHandler) Metadata(c *gin.Context) {
	if h == nil || h.sessions == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	name, fs, cleanPath, ok := h.resolve(c)
	if !ok {
		return
	}

	start := time.Now()
	info, err := fs.Stat(requestContext(c), cleanPath)
	observeRemoteOp(name, "stat", start, err)
	if err != nil {
		h.recordAudit(c, "files.stat", name, cleanPath, "error", nil)
		response.Error(c, mapRemoteError(err))
		return
	}

	h.recordAudit(c, "files.stat", name, cleanPath, "success", nil)
	response.Success(c, http.StatusOK, fileStatResponse{
		Path:       cleanPath,
		Size:       info.Size,
		Access:     string(info.Access),
		AccessedAt: info.AccessedAt,
		ModifiedAt: info.ModifiedAt,
	})
}

// Content reads the whole file and returns it inline, base64 encoded. Files
// above maxInlineFileBytes are rejected.
func (h *FilesHandler) Content(c *gin.Context) {
	if h == nil || h.sessions == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	name, fs, cleanPath, ok := h.resolve(c)
	if !ok {
		return
	}

	ctx := requestContext(c)
	info, err := fs.Stat(ctx, cleanPath)
	if err != nil {
		h.recordAudit(c, "files.content", name, cleanPath, "error", nil)
		response.Error(c, mapRemoteError(err))
		return
	}
	if info.Size > maxInlineFileBytes {
		response.Error(c, apperrors.New(
			"file.too_large",
			fmt.Sprintf("file exceeds the inline limit of %d bytes", maxInlineFileBytes),
			http.StatusRequestEntityTooLarge,
		))
		return
	}

	start := time.Now()
	data, err := remotefs.ReadAll(ctx, fs, cleanPath)
	observeRemoteOp(name, "content", start, err)
	if err != nil {
		h.recordAudit(c, "files.content", name, cleanPath, "error", nil)
		h.announceTransfer(realtime.EventTransferFailed, name, cleanPath, "content", 0, err.Error())
		response.Error(c, mapRemoteError(err))
		return
	}

	metrics.TransferBytes.WithLabelValues(name, "content").Add(float64(len(data)))
	h.recordAudit(c, "files.content", name, cleanPath, "success", map[string]any{"bytes": len(data)})
	h.announceTransfer(realtime.EventTransferCompleted, name, cleanPath, "content", int64(len(data)), "")

	response.Success(c, http.StatusOK, fileContentResponse{
		Path:     cleanPath,
		Size:     int64(len(data)),
		Encoding: "base64",
		Content:  base64.StdEncoding.EncodeToString(data),
	})
}

// Stream sends the file as a raw octet stream, chunk by chunk, flushing as
// it goes. The first chunk is fetched before any header is written so open
// failures still produce a clean JSON error.
func (h *FilesHandler) Stream(c *gin.Context) {
	if h == nil || h.sessions == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	name, fs, cleanPath, ok := h.resolve(c)
	if !ok {
		return
	}

	ctx := requestContext(c)
	info, err := fs.Stat(ctx, cleanPath)
	if err != nil {
		h.recordAudit(c, "files.stream", name, cleanPath, "error", nil)
		response.Error(c, mapRemoteError(err))
		return
	}

	stream := remotefs.NewStream(fs, cleanPath)
	defer func() { _ = stream.Close() }()

	start := time.Now()
	first := stream.Next(ctx)
	if !first {
		if err := stream.Err(); err != nil {
			observeRemoteOp(name, "stream", start, err)
			h.recordAudit(c, "files.stream", name, cleanPath, "error", nil)
			h.announceTransfer(realtime.EventTransferFailed, name, cleanPath, "stream", 0, err.Error())
			response.Error(c, mapRemoteError(err))
			return
		}
	}

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stdpath.Base(cleanPath)))
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	c.Status(http.StatusOK)

	var written int64
	clientGone := false
	for first {
		chunk := stream.Bytes()
		if len(chunk) > 0 {
			if _, werr := c.Writer.Write(chunk); werr != nil {
				clientGone = true
				break
			}
			c.Writer.Flush()
			written += int64(len(chunk))
		}
		first = stream.Next(ctx)
	}

	streamErr := stream.Err()
	observeRemoteOp(name, "stream", start, streamErr)
	metrics.TransferBytes.WithLabelValues(name, "stream").Add(float64(written))

	if streamErr != nil || clientGone {
		logger.WithModule("files").Warn("stream aborted",
			zap.String("session", name),
			zap.String("path", cleanPath),
			zap.Int64("bytes", written),
			zap.Bool("client_gone", clientGone),
			zap.Error(streamErr),
		)
		h.recordAudit(c, "files.stream", name, cleanPath, "error", map[string]any{"bytes": written})
		failure := "client disconnected"
		if streamErr != nil {
			failure = streamErr.Error()
		}
		h.announceTransfer(realtime.EventTransferFailed, name, cleanPath, "stream", written, failure)
		return
	}

	h.recordAudit(c, "files.stream", name, cleanPath, "success", map[string]any{"bytes": written})
	h.announceTransfer(realtime.EventTransferCompleted, name, cleanPath, "stream", written, "")
}

func (h *FilesHandler) resolve(c *gin.Context) (string, remotefs.FileSystem, string, bool) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		response.Error(c, apperrors.NewBadRequest("session name is required"))
		return "", nil, "", false
	}

	fs, err := h.sessions.Get(name)
	if err != nil {
		response.Error(c, mapRemoteError(err))
		return "", nil, "", false
	}

	cleanPath, err := sanitizeRemotePath(c.Query("path"))
	if err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return "", nil, "", false
	}

	return name, fs, cleanPath, true
}

func (h *FilesHandler) recordAudit(c *gin.Context, action, session, path, result string, metadata map[string]any) {
	if h.audit == nil {
		return
	}
	services.RecordAudit(requestContext(c), h.audit, services.AuditEntry{
		Actor:     actorName(c),
		Action:    action,
		Session:   session,
		Path:      path,
		Result:    result,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Metadata:  metadata,
	})
}

func (h *FilesHandler) announceTransfer(event, session, path, mode string, bytes int64, failure string) {
	if h.broadcast == nil {
		return
	}
	data := map[string]any{
		"session": session,
		"path":    path,
		"mode":    mode,
		"bytes":   bytes,
	}
	if failure != "" {
		data["error"] = failure
	}
	h.broadcast(realtime.StreamTransfers, realtime.Message{Event: event, Data: data})
}

func observeRemoteOp(session, op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.RemoteOperations.WithLabelValues(session, op, result).Inc()
	metrics.RemoteOperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func sanitizeRemotePath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ".", nil
	}
	if !utf8.ValidString(trimmed) {
		return "", errors.New("path must be valid UTF-8")
	}
	if strings.ContainsRune(trimmed, '\x00') {
		return "", errors.New("path contains invalid characters")
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", errors.New("parent directory segments are not allowed")
		}
	}
	cleaned := stdpath.Clean(trimmed)
	if strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", errors.New("path escapes session root")
	}
	if cleaned == "" {
		return ".", nil
	}
	return cleaned, nil
}
