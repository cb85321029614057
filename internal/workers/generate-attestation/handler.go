package generateattestation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"derogation-bot/internal/browser"
	"derogation-bot/internal/common/errors"
	"derogation-bot/internal/common/logger"
	"derogation-bot/internal/common/metrics"
	"derogation-bot/internal/common/observability"
	"derogation-bot/internal/common/validation"
	"derogation-bot/internal/dialogue"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
)

const TaskType = "generate-attestation"

const maxDirAttempts = 16

var unsafeDirChars = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// EngineProvider hands out the shared browser engine.
type EngineProvider interface {
	Engine(ctx context.Context) (browser.Engine, error)
}

// DocumentDeliverer sends a produced document back to the user.
type DocumentDeliverer interface {
	Deliver(ctx context.Context, req deliverdocument.Request) error
}

type Handler struct {
	config    *Config
	engines   EngineProvider
	deliverer DocumentDeliverer
	obs       *observability.Observability
	logger    logger.Logger
	schema    map[string]interface{}

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewHandler(config *Config, engines EngineProvider, deliverer DocumentDeliverer, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		engines:   engines,
		deliverer: deliverer,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		schema:    validation.RequiredStringsSchema(dialogue.FieldNames()),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Execute drives the form for input and delivers the resulting document.
// It never returns an error and never panics: every failure becomes an Output
// carrying the message to show the user. The page and the download folder are
// released on every path.
func (h *Handler) Execute(ctx context.Context, input *Input) (out *Output) {
	attemptID := uuid.NewString()
	start := time.Now()
	log := h.logger.WithFields(map[string]interface{}{
		"attemptId": attemptID,
		"sessionId": input.SessionID,
		"channel":   input.Channel,
		"reason":    input.Reason,
	})

	ctx, span := h.obs.StartSpan(ctx, TaskType,
		attribute.String("attempt.id", attemptID),
		attribute.String("reason", string(input.Reason)),
		attribute.String("channel", string(input.Channel)),
	)
	defer span.End()

	metrics.GenerationsActive.Inc()
	defer metrics.GenerationsActive.Dec()

	// registered first so it runs after the page and folder cleanup below
	defer func() {
		if r := recover(); r != nil {
			out = h.fail(log, attemptID, errors.NewInternalError(fmt.Errorf("panic: %v", r)))
		}
		duration := time.Since(start)
		if out.Status != StatusDelivered {
			span.SetStatus(codes.Error, string(out.Status))
		}
		metrics.GenerationsTotal.WithLabelValues(string(input.Reason), string(out.Status)).Inc()
		metrics.GenerationDuration.WithLabelValues(string(out.Status)).Observe(duration.Seconds())
		h.obs.RecordGeneration(ctx, string(out.Status), duration)
		log.Info("generation finished", map[string]interface{}{
			"status":     out.Status,
			"durationMs": duration.Milliseconds(),
		})
	}()

	log.Info("generation started", nil)

	if err := h.validate(input); err != nil {
		log.Warn("refusing to generate", map[string]interface{}{"error": err})
		return &Output{
			AttemptID: attemptID,
			Status:    StatusInvalid,
			Message:   dialogue.MsgIncomplete,
			ErrorCode: string(errors.ErrCodeInvalidDetails),
		}
	}

	engine, err := h.engines.Engine(ctx)
	if err != nil {
		return h.fail(log, attemptID, errors.NewBrowserStartFailedError(err))
	}

	page, err := engine.NewPage(ctx)
	if err != nil {
		return h.fail(log, attemptID, errors.NewAutomationFailedError("open page", err))
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn("failed to close page", map[string]interface{}{"error": err})
		}
	}()

	dir, err := h.createDownloadDir(input.SessionID)
	if err != nil {
		return h.fail(log, attemptID, errors.NewInternalError(err))
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove download folder", map[string]interface{}{"dir": dir, "error": err})
		}
	}()

	document, err := h.fillForm(ctx, page, dir, input)
	if err != nil {
		return h.fail(log, attemptID, err)
	}
	if document == "" {
		missing := errors.NewDownloadMissingError(dir)
		log.Warn("no document downloaded", map[string]interface{}{
			"errorCode": missing.Code,
			"category":  errors.GetErrorCategory(missing.Code),
			"details":   missing.Details,
		})
		return &Output{
			AttemptID: attemptID,
			Status:    StatusNoDownload,
			Message:   MsgNoDownload,
			ErrorCode: string(missing.Code),
		}
	}

	err = h.deliverer.Deliver(ctx, deliverdocument.Request{
		Channel:   input.Channel,
		Recipient: input.Recipient,
		Path:      document,
	})
	if err != nil {
		return h.fail(log, attemptID, err)
	}

	return &Output{
		AttemptID: attemptID,
		Status:    StatusDelivered,
		Document:  filepath.Base(document),
	}
}

func (h *Handler) validate(input *Input) error {
	if !input.Reason.Valid() {
		return errors.NewInvalidDetailsError(fmt.Sprintf("unknown reason %q", input.Reason))
	}
	result, err := validation.ValidateStrings(input.Details.StringMap(), h.schema)
	if err != nil {
		return err
	}
	if !result.Valid {
		return errors.NewInvalidDetailsError(result.Error())
	}
	return nil
}

// fillForm runs the browser steps and returns the first file found in dir,
// or "" when the form produced nothing.
func (h *Handler) fillForm(ctx context.Context, page browser.Page, dir string, input *Input) (string, error) {
	if err := page.AllowDownloads(ctx, dir); err != nil {
		return "", errors.NewAutomationFailedError("allow downloads", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, h.config.NavigationTimeout)
	err := page.Navigate(navCtx, h.config.FormURL)
	cancel()
	if err != nil {
		return "", errors.NewAutomationFailedError("navigate", err)
	}

	for _, f := range dialogue.Fields {
		if err := page.Type(ctx, fmt.Sprintf(fieldSelectorFmt, f), input.Details[f]); err != nil {
			return "", errors.NewAutomationFailedError("fill "+string(f), err)
		}
	}

	date, clock := ExitTimestamp(h.now())
	if err := page.SetValue(ctx, selectorExitDate, date); err != nil {
		return "", errors.NewAutomationFailedError("exit date", err)
	}
	if err := page.SetValue(ctx, selectorExitTime, clock); err != nil {
		return "", errors.NewAutomationFailedError("exit time", err)
	}

	if err := page.Click(ctx, fmt.Sprintf(reasonSelectorFmt, input.Reason)); err != nil {
		return "", errors.NewAutomationFailedError("select reason", err)
	}
	if err := page.Click(ctx, selectorGenerate); err != nil {
		return "", errors.NewAutomationFailedError("generate", err)
	}

	if err := h.sleep(ctx, h.config.DownloadWait); err != nil {
		return "", errors.NewAutomationFailedError("await download", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.NewAutomationFailedError("list downloads", err)
	}
	if len(entries) == 0 {
		return "", nil
	}
	return filepath.Join(dir, entries[0].Name()), nil
}

// createDownloadDir makes a fresh folder named {session}_{unix nanos} under the
// downloads root. A name already taken is never reused.
func (h *Handler) createDownloadDir(sessionID string) (string, error) {
	root, err := filepath.Abs(h.config.DownloadsDir)
	if err != nil {
		return "", fmt.Errorf("resolve downloads dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}

	prefix := unsafeDirChars.ReplaceAllString(sessionID, "_")
	if prefix == "" {
		prefix = "session"
	}
	stamp := h.now().UnixNano()
	for i := 0; i < maxDirAttempts; i++ {
		dir := filepath.Join(root, prefix+"_"+strconv.FormatInt(stamp+int64(i), 10))
		err := os.Mkdir(dir, 0o700)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create download folder: %w", err)
		}
	}
	return "", fmt.Errorf("no free download folder for %s after %d attempts", prefix, maxDirAttempts)
}

func (h *Handler) fail(log logger.Logger, attemptID string, err error) *Output {
	stdErr := errors.Normalize(err)
	log.Error("generation failed", map[string]interface{}{
		"errorCode": stdErr.Code,
		"category":  errors.GetErrorCategory(stdErr.Code),
		"error":     err,
	})
	return &Output{
		AttemptID: attemptID,
		Status:    StatusFailed,
		Message:   MsgFailed,
		ErrorCode: string(stdErr.Code),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
