package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"rash-identifier/internal/inference"
	"rash-identifier/internal/models"
)

// Recorder receives metadata about every finished inference attempt.
type Recorder interface {
	Record(ctx context.Context, rec models.Analysis) error
}

type Orchestrator struct {
	client   inference.Client
	prompt   string
	timeout  time.Duration
	recorder Recorder
	logger   *log.Logger
}

type Option func(*Orchestrator)

func WithTimeout(d time.Duration) Option { return func(o *Orchestrator) { o.timeout = d } }

func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

func WithPrompt(p string) Option { return func(o *Orchestrator) { o.prompt = p } }

func WithLogger(l *log.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

func NewOrchestrator(client inference.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		prompt:  Prompt,
		timeout: 90 * time.Second,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Provider() string { return o.client.Name() }
func (o *Orchestrator) Model() string    { return o.client.Model() }

// Analyze runs one inference call for the session's current image and waits for it.
// It returns ErrBusy or ErrNoImage when the call cannot be admitted; a failed call is
// not an error here, it lands in the session's error slot.
func (o *Orchestrator) Analyze(ctx context.Context, s *Session) error {
	req, err := s.begin(ctx, o.timeout)
	if err != nil {
		return err
	}
	o.run(s, req)
	return nil
}

// Start admits the call like Analyze but runs it in the background.
func (o *Orchestrator) Start(s *Session) error {
	req, err := s.begin(context.Background(), o.timeout)
	if err != nil {
		return err
	}
	go o.run(s, req)
	return nil
}

func (o *Orchestrator) run(s *Session, req *request) {
	started := time.Now()
	var (
		text string
		err  error
	)
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", errFault, r)
		}
		applied := s.finish(req, text, err)
		elapsed := time.Since(started)
		if err != nil {
			o.logger.Printf("analysis %s failed after %s: %v", s.ID, elapsed.Round(time.Millisecond), err)
		} else {
			o.logger.Printf("analysis %s completed in %s (%d chars)", s.ID, elapsed.Round(time.Millisecond), len(text))
		}
		if !applied {
			o.logger.Printf("analysis %s result dropped, superseded by a newer image", s.ID)
		}
		o.record(s, req, text, err, elapsed)
	}()

	text, err = o.client.Submit(req.ctx, req.image, o.prompt)
}

func (o *Orchestrator) record(s *Session, req *request, text string, err error, elapsed time.Duration) {
	if o.recorder == nil {
		return
	}
	rec := models.Analysis{
		ID:          uuid.NewString(),
		SessionID:   s.ID,
		Provider:    o.client.Name(),
		Model:       o.client.Model(),
		Status:      statusOf(err),
		ResultChars: len(text),
		Duration:    elapsed,
		CreatedAt:   time.Now().UTC(),
	}
	if err != nil {
		rec.Error = userMessage(err)
	}
	if data, mimeType, decodeErr := req.image.Decode(); decodeErr == nil {
		sum := sha256.Sum256(data)
		rec.ImageMIME = mimeType
		rec.ImageBytes = len(data)
		rec.ImageSHA256 = hex.EncodeToString(sum[:])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if recErr := o.recorder.Record(ctx, rec); recErr != nil {
		o.logger.Printf("record analysis %s: %v", rec.ID, recErr)
	}
}

func statusOf(err error) models.AnalysisStatus {
	switch {
	case err == nil:
		return models.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return models.StatusTimeout
	case errors.Is(err, context.Canceled):
		return models.StatusCancelled
	default:
		return models.StatusError
	}
}
