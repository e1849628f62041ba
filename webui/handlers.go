package webui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"vitals_backend/analysis"
	"vitals_backend/core"
	"vitals_backend/db"
	"vitals_backend/recorder"
	"vitals_backend/results"
	"vitals_backend/status"
)

// formFieldLimit bounds each non-file multipart field.
const formFieldLimit = 64 << 10

// errorResponse is the body of every 4xx/5xx JSON reply.
type errorResponse struct {
	Detail string `json:"detail"`
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// historyResponse is the body of GET /api/history.
type historyResponse struct {
	Entries []db.HistoryEntry `json:"entries"`
	Count   int               `json:"count"`
}

// indexData feeds static/index.html.
type indexData struct {
	Title            string
	Methods          []string
	DefaultMethod    string
	APIKeyStatus     string
	MaxFileSizeMB    int64
	MaxVideoDuration int
	AuthEnabled      bool
}

// writeJSON encodes v before committing the status, so an unencodable
// value becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		enc.Encode(errorResponse{Detail: "回應編碼失敗: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: core.FileTimestamp(s.now()),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := s.config.Page
	apiKeyStatus := "❌ 未設定 API Key"
	if page.APIKeyConfigured {
		apiKeyStatus = "✅ 已從 .env 載入 API Key"
	}
	data := indexData{
		Title:            page.Title,
		Methods:          page.Methods,
		DefaultMethod:    page.DefaultMethod,
		APIKeyStatus:     apiKeyStatus,
		MaxFileSizeMB:    page.MaxFileSizeMB,
		MaxVideoDuration: page.MaxVideoDuration,
		AuthEnabled:      s.authProvider != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("render index page", zap.Error(err))
	}
}

// uploadForm is the parsed multipart body of POST /api/process-video.
type uploadForm struct {
	methods       []string
	apiKey        string
	source        string
	sequenceIndex int
	sequenceTotal int
	fileName      string
	videoPath     string
}

// uploadError carries the HTTP status for a rejected upload.
type uploadError struct {
	status int
	detail string
}

func (e *uploadError) Error() string { return e.detail }

func (s *Server) sizeLimitMessage() string {
	return fmt.Sprintf("影片檔案大小不可超過 %dMB", s.config.MaxUploadBytes/(1024*1024))
}

func (s *Server) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", RequestIDFromContext(r.Context())))

	if s.uploadLimiter != nil {
		if ok, wait := s.uploadLimiter.Allow(getClientIP(r)); !ok {
			w.Header().Set("Retry-After", retryAfter(wait))
			writeDetail(w, http.StatusTooManyRequests, "上傳過於頻繁，請稍後再試")
			return
		}
	}

	form, err := s.readUpload(w, r)
	if form != nil && form.videoPath != "" {
		defer func() {
			if rmErr := os.Remove(form.videoPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Warn("remove uploaded temp file", zap.String("path", form.videoPath), zap.Error(rmErr))
			}
		}()
	}
	if err != nil {
		var ue *uploadError
		if errors.As(err, &ue) {
			writeDetail(w, ue.status, ue.detail)
			return
		}
		logger.Error("read upload", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.Publish(status.Event{
		Channel: status.ChannelUpload,
		Stage:   status.StageQueued,
		File:    form.fileName,
		Message: fmt.Sprintf("正在處理 %s (%d/%d)", form.fileName, form.sequenceIndex+1, form.sequenceTotal),
	})

	result, err := s.processor.ProcessVideo(r.Context(), analysis.Request{
		VideoPath: form.videoPath,
		FileName:  form.fileName,
		Methods:   form.methods,
		APIKey:    form.apiKey,
		Source:    results.Source(form.source),
	})
	if err != nil {
		if analysis.IsValidation(err) {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("process video", zap.String("file", form.fileName), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("video processed",
		zap.String("file", form.fileName),
		zap.String("status", result.Status),
		zap.Int("entries", len(result.Results)))
	writeJSON(w, http.StatusOK, result)
}

// readUpload streams the multipart body. The video part goes straight to a
// temp file and is cut off at MaxUploadBytes, so an oversized upload is
// rejected before anything reaches the detector. The returned form may
// carry a videoPath even when err is set; the caller removes it.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*uploadForm, error) {
	maxBytes := s.config.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &uploadError{http.StatusBadRequest, "請以 multipart/form-data 上傳影片"}
	}

	form := &uploadForm{source: string(results.SourceUpload), sequenceTotal: 1}
	var sawVideo bool
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return form, s.classifyReadError(err)
		}

		if part.FormName() == "video" {
			if sawVideo {
				part.Close()
				continue
			}
			sawVideo = true
			if err := s.saveVideoPart(part, form, maxBytes); err != nil {
				part.Close()
				return form, err
			}
			part.Close()
			continue
		}

		value, err := readField(part)
		part.Close()
		if err != nil {
			return form, s.classifyReadError(err)
		}
		switch part.FormName() {
		case "methods":
			form.methods = append(form.methods, value)
		case "method":
			if value != "" {
				form.methods = append(form.methods, value)
			}
		case "api_key":
			form.apiKey = value
		case "source":
			if v := strings.TrimSpace(value); v != "" {
				form.source = v
			}
		case "sequence_index":
			if form.sequenceIndex, err = parseIntField("sequence_index", value, 0); err != nil {
				return form, err
			}
		case "sequence_total":
			if form.sequenceTotal, err = parseIntField("sequence_total", value, 1); err != nil {
				return form, err
			}
		}
	}

	if !sawVideo {
		return form, &uploadError{http.StatusUnprocessableEntity, "缺少影片檔案 (video)"}
	}
	if len(analysis.NormalizeMethods(form.methods)) == 0 {
		return form, &uploadError{http.StatusBadRequest, "請至少選擇一種檢測方法"}
	}
	return form, nil
}

func (s *Server) saveVideoPart(part *multipart.Part, form *uploadForm, maxBytes int64) error {
	name := filepath.Base(part.FileName())
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "uploaded.mp4"
	}
	form.fileName = name

	tmp, err := os.CreateTemp(s.tempDir(), "vitals-upload-*"+filepath.Ext(name))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	form.videoPath = tmp.Name()

	n, copyErr := io.Copy(tmp, io.LimitReader(part, maxBytes+1))
	closeErr := tmp.Close()
	if copyErr != nil {
		return s.classifyReadError(copyErr)
	}
	if n > maxBytes {
		return &uploadError{http.StatusBadRequest, s.sizeLimitMessage()}
	}
	if closeErr != nil {
		return fmt.Errorf("write temp file: %w", closeErr)
	}
	return nil
}

func (s *Server) classifyReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &uploadError{http.StatusBadRequest, s.sizeLimitMessage()}
	}
	return &uploadError{http.StatusBadRequest, "無法讀取上傳內容: " + err.Error()}
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, formFieldLimit+1))
	if err != nil {
		return "", err
	}
	if len(data) > formFieldLimit {
		return "", fmt.Errorf("field %s too large", part.FormName())
	}
	return string(data), nil
}

func parseIntField(name, value string, def int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &uploadError{http.StatusUnprocessableEntity, fmt.Sprintf("%s 必須是整數", name)}
	}
	return n, nil
}

func (s *Server) handleWebcamStart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(formFieldLimit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeDetail(w, http.StatusBadRequest, "無法讀取表單內容")
		return
	}

	duration := s.config.DefaultWebcamDuration
	if raw := r.FormValue("duration"); strings.TrimSpace(raw) != "" {
		n, err := recorder.ParseDuration(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		duration = n
	}

	resp, err := s.recorder.Start(r.Context(), recorder.StartRequest{
		Method:   r.FormValue("method"),
		APIKey:   r.FormValue("api_key"),
		Duration: duration,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, recorder.ErrAlreadyRecording):
		writeJSON(w, http.StatusOK, resp)
	case recorder.IsValidation(err):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recorder.ErrSessionClosed):
		writeDetail(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("start webcam recording",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleWebcamStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.recorder.Stop(r.Context()))
}

func (s *Server) handleWebcamStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.recorder.Poll())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := db.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusBadRequest, "limit 必須是正整數")
			return
		}
		limit = n
	}

	if s.history == nil {
		writeJSON(w, http.StatusOK, historyResponse{Entries: []db.HistoryEntry{}})
		return
	}

	entries, err := s.history.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list history", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "無法讀取分析紀錄")
		return
	}
	if entries == nil {
		entries = []db.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Entries: entries, Count: len(entries)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeDetail(w, http.StatusNotFound, "統計功能未啟用")
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// retryAfter rounds a wait up to whole seconds for the Retry-After header.
func retryAfter(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
