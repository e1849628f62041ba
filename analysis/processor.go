// Package analysis runs one or more detection methods against a video and
// turns each outcome into a user-facing entry: formatted text, chart,
// metrics, a JSON record on disk and a history row.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"vitals_backend/db"
	"vitals_backend/detection"
	"vitals_backend/media"
	"vitals_backend/report"
	"vitals_backend/results"
	"vitals_backend/status"
)

// ResultStore persists the raw detector output.
type ResultStore interface {
	Save(source results.Source, videoPath, method string, faces []detection.FaceResult) (string, error)
}

// HistoryRecorder stores one row per method run.
type HistoryRecorder interface {
	InsertAnalysis(ctx context.Context, entry db.HistoryEntry) (string, error)
}

// ChartRenderer returns a base64 PNG for the faces.
type ChartRenderer func(faces []detection.FaceResult) (string, error)

// Options wires a Processor. Detector and Store are required; the rest
// may be left nil.
type Options struct {
	Detector         detection.Detector
	Prober           media.Prober
	Store            ResultStore
	History          HistoryRecorder
	Publisher        status.Publisher
	Chart            ChartRenderer
	DefaultAPIKey    string
	MaxVideoDuration time.Duration
	Logger           *zap.Logger
}

// Processor is safe for concurrent use; it holds no per-request state.
type Processor struct {
	detector      detection.Detector
	prober        media.Prober
	store         ResultStore
	history       HistoryRecorder
	publisher     status.Publisher
	chart         ChartRenderer
	defaultAPIKey string
	maxDuration   time.Duration
	logger        *zap.Logger
}

// NewProcessor creates a Processor from opts.
func NewProcessor(opts Options) *Processor {
	p := &Processor{
		detector:      opts.Detector,
		prober:        opts.Prober,
		store:         opts.Store,
		history:       opts.History,
		publisher:     opts.Publisher,
		chart:         opts.Chart,
		defaultAPIKey: strings.TrimSpace(opts.DefaultAPIKey),
		maxDuration:   opts.MaxVideoDuration,
		logger:        opts.Logger,
	}
	if p.publisher == nil {
		p.publisher = status.Nop{}
	}
	if p.chart == nil {
		p.chart = report.ChartBase64
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

type plannedMethod struct {
	name   string
	method detection.Method
}

// ProcessVideo validates the request, then runs every method in order.
// Validation problems are returned as *ValidationError before any
// detector call. Once running, a failing method is recorded as a failed
// entry and the remaining methods still run.
func (p *Processor) ProcessVideo(ctx context.Context, req Request) (*BatchResult, error) {
	if req.VideoPath == "" {
		return nil, invalid("找不到影片檔案: 未提供路徑")
	}
	if _, err := os.Stat(req.VideoPath); err != nil {
		return nil, invalid(fmt.Sprintf("找不到影片檔案: %s", req.VideoPath))
	}

	names := NormalizeMethods(req.Methods)
	if len(names) == 0 {
		return nil, invalid("至少需要選擇一種檢測方法")
	}

	apiKey := p.effectiveAPIKey(req.APIKey)
	plan := make([]plannedMethod, 0, len(names))
	for _, name := range names {
		m, err := detection.ParseMethod(name)
		if err != nil {
			return nil, invalid(err.Error())
		}
		if m.RequiresCredential() && apiKey == "" {
			return nil, invalid("使用 VITALLENS 方法需要提供 API Key")
		}
		plan = append(plan, plannedMethod{name: name, method: m})
	}

	if !req.SkipDurationCheck {
		if err := p.checkDuration(ctx, req.VideoPath); err != nil {
			return nil, err
		}
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = filepath.Base(req.VideoPath)
	}
	source := req.Source
	if source == "" {
		source = results.SourceUpload
	}
	channel := status.ChannelUpload
	if source == results.SourceWebcam {
		channel = status.ChannelWebcam
	}

	batch := &BatchResult{Results: make([]Entry, 0, len(plan)), Errors: []string{}}
	for i, pm := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.publisher.Publish(status.Event{
			Channel: channel,
			Stage:   status.StageStart,
			Method:  pm.name,
			File:    fileName,
			Message: fmt.Sprintf("[%d/%d] 使用 %s 分析 %s", i+1, len(plan), pm.name, fileName),
		})

		entry, errMsg := p.runMethod(ctx, req.VideoPath, fileName, source, pm, apiKey)
		if errMsg != "" {
			batch.Errors = append(batch.Errors, errMsg)
			p.publisher.Publish(status.Event{
				Channel: channel,
				Stage:   status.StageError,
				Method:  pm.name,
				File:    fileName,
				Message: fmt.Sprintf("%s 分析失敗: %s", pm.name, errMsg),
			})
		} else if entry.Succeeded() {
			p.publisher.Publish(status.Event{
				Channel: channel,
				Stage:   status.StageComplete,
				Method:  pm.name,
				File:    fileName,
				Message: fmt.Sprintf("完成 %s 分析", pm.name),
			})
		}
		entry.HistoryID = p.recordHistory(ctx, source, entry)
		batch.Results = append(batch.Results, entry)
	}

	batch.Status = StatusComplete
	if len(batch.Errors) > 0 {
		batch.Status = StatusCompletedWithErrs
	}
	return batch, nil
}

// runMethod performs one detector call. A non-empty error message means
// the detector failed; an empty result is a failed entry without an error.
func (p *Processor) runMethod(ctx context.Context, videoPath, fileName string, source results.Source, pm plannedMethod, apiKey string) (Entry, string) {
	entry := Entry{
		FileName:    fileName,
		Method:      pm.name,
		DisplayName: fmt.Sprintf("%s（%s）", fileName, pm.name),
		Metrics:     report.Metrics{},
		RawResult:   []detection.FaceResult{},
	}

	detReq := detection.Request{VideoPath: videoPath, Method: pm.method}
	if pm.method.RequiresCredential() {
		detReq.APIKey = apiKey
	}

	start := time.Now()
	faces, err := p.detector.Detect(ctx, detReq)
	logger := p.logger.With(
		zap.String("method", pm.name),
		zap.String("file", fileName),
		zap.Duration("elapsed", time.Since(start)))

	if err != nil {
		msg := detection.UserMessage(err)
		logger.Error("detection failed",
			zap.String("kind", string(detection.KindOf(err))),
			zap.Error(err))
		entry.Status = StatusFailed
		entry.Summary = msg
		entry.ErrorKind = detection.KindOf(err)
		if entry.ErrorKind == detection.KindUnknown {
			entry.ErrorKind = detection.Classify(err.Error()).Kind
		}
		entry.RawResult = nil
		return entry, msg
	}

	entry.AnalysisPath = p.save(source, videoPath, pm.name, faces)

	if len(faces) == 0 {
		logger.Warn("detector returned no faces")
		entry.Status = StatusFailed
		entry.Summary = NoFaceSummary
		entry.ErrorKind = detection.KindNoFace
		return entry, ""
	}

	entry.Status = StatusComplete
	entry.Metrics = report.ExtractPrimaryMetrics(faces)
	entry.FaceNote = report.FaceNote(faces)
	entry.ResultText = report.FormatResults(faces)
	entry.Summary = report.BuildSummary(entry.Metrics, pm.name)
	entry.RawResult = faces

	plot, err := p.chart(faces)
	if err != nil && !errors.Is(err, report.ErrNoChart) {
		logger.Warn("chart rendering failed", zap.Error(err))
	}
	entry.PlotImage = plot

	logger.Info("detection complete",
		zap.Int("faces", len(faces)),
		zap.String("summary", entry.Summary))
	return entry, ""
}

// save writes the JSON record. A failure is logged and leaves the path empty.
func (p *Processor) save(source results.Source, videoPath, method string, faces []detection.FaceResult) string {
	if p.store == nil {
		return ""
	}
	path, err := p.store.Save(source, videoPath, method, faces)
	if err != nil {
		p.logger.Error("failed to save analysis record",
			zap.String("method", method),
			zap.Error(err))
		return ""
	}
	return path
}

func (p *Processor) recordHistory(ctx context.Context, source results.Source, entry Entry) string {
	if p.history == nil {
		return ""
	}
	row := db.HistoryEntry{
		Source:        string(source),
		Method:        entry.Method,
		FileName:      entry.FileName,
		Status:        entry.Status,
		ErrorKind:     string(entry.ErrorKind),
		FacesDetected: len(entry.RawResult),
		Summary:       entry.Summary,
		ResultPath:    entry.AnalysisPath,
	}
	if v, ok := entry.Metrics.Get(report.MetricHeartRate); ok {
		row.HeartRate = &v
	}
	if v, ok := entry.Metrics.Get(report.MetricRespiratoryRate); ok {
		row.RespiratoryRate = &v
	}

	id, err := p.history.InsertAnalysis(ctx, row)
	if err != nil {
		p.logger.Warn("failed to record analysis history", zap.Error(err))
		return ""
	}
	return id
}

func (p *Processor) checkDuration(ctx context.Context, path string) error {
	if p.prober == nil || p.maxDuration <= 0 {
		return nil
	}
	d, err := p.prober.Duration(ctx, path)
	if err != nil {
		// Unknown length is not a reason to reject the upload.
		p.logger.Debug("duration check skipped", zap.String("path", path), zap.Error(err))
		return nil
	}
	if d > p.maxDuration {
		return invalid(fmt.Sprintf("影片長度不得超過 %d 秒 (目前約 %d 秒)",
			int(p.maxDuration.Seconds()), int(math.Floor(d.Seconds()))))
	}
	return nil
}

func (p *Processor) effectiveAPIKey(key string) string {
	if k := strings.TrimSpace(key); k != "" {
		return k
	}
	return p.defaultAPIKey
}

// NormalizeMethods trims, drops blanks and removes duplicates while
// keeping the first occurrence order.
func NormalizeMethods(methods []string) []string {
	seen := make(map[string]struct{}, len(methods))
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
