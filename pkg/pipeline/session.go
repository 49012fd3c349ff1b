// Package pipeline runs face-region emotion inference for captured frames.
//
// A Session binds one emotion.Model to one Lane. Every job for the session runs
// on that lane, so the model and its buffers are only ever touched from a
// single goroutine. Detection is delegated to an external service off the lane
// and its completion re-enters the lane. Jobs whose detections finish out of
// order are emitted in completion order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/teslashibe/go-fer/pkg/detection"
	"github.com/teslashibe/go-fer/pkg/emotion"
	"github.com/teslashibe/go-fer/pkg/region"
)

// ModelLoader builds the model for a new session.
type ModelLoader func() (*emotion.Model, error)

// LoadModel returns a ModelLoader for cfg and open.
func LoadModel(cfg emotion.Config, open emotion.Opener) ModelLoader {
	return func() (*emotion.Model, error) {
		return emotion.New(cfg, open)
	}
}

// SessionInfo describes a running session.
type SessionInfo struct {
	ID          string          `json:"id"`
	Started     time.Time       `json:"started"`
	Backend     emotion.Backend `json:"backend"`
	InputWidth  int             `json:"input_width"`
	InputHeight int             `json:"input_height"`
	Labels      []string        `json:"labels"`
}

// Session owns one model and the lane it runs on.
type Session struct {
	info    SessionInfo
	cfg     Config
	model   *emotion.Model
	det     detection.Detector
	sink    Sink
	lane    *Lane
	metrics *Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewSession loads the model and starts the lane. A load failure aborts
// setup and nothing is left running.
func NewSession(cfg Config, load ModelLoader, det detection.Detector, sink Sink) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if load == nil || det == nil || sink == nil {
		return nil, errors.New("pipeline: model loader, detector and sink are required")
	}

	model, err := load()
	if err != nil {
		return nil, fmt.Errorf("pipeline: load model: %w", err)
	}

	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "pipeline")
	}
	logger = logger.With("session", id)

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	w, h := model.InputSize()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		info: SessionInfo{
			ID:          id,
			Started:     time.Now(),
			Backend:     model.Backend(),
			InputWidth:  w,
			InputHeight: h,
			Labels:      model.Labels(),
		},
		cfg:     cfg,
		model:   model,
		det:     det,
		sink:    sink,
		lane:    NewLane(logger),
		metrics: metrics,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	logger.Info("session started", "backend", s.info.Backend, "input", fmt.Sprintf("%dx%d", w, h))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.info.ID
}

// Info returns a description of the session.
func (s *Session) Info() SessionInfo {
	info := s.info
	info.Labels = append([]string(nil), s.info.Labels...)
	return info
}

// Metrics returns the collector the session records into.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Submit enqueues a job for img and returns immediately.
func (s *Session) Submit(img image.Image) (JobID, error) {
	if img == nil || img.Bounds().Empty() {
		return "", errors.New("pipeline: empty frame")
	}

	j := &job{
		id:        JobID(uuid.NewString()),
		original:  img,
		submitted: time.Now(),
	}
	if err := s.lane.Post(func() { s.start(j) }); err != nil {
		return "", ErrSessionClosed
	}
	return j.id, nil
}

// Close stops accepting jobs, waits for every queued and in-flight job to
// finish, then releases the model. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.lane.Stop()
		s.cancel()
		s.closeErr = s.model.Close()
		s.logger.Info("session closed")
	})
	return s.closeErr
}

func (s *Session) setState(j *job, st State) {
	j.state = st
	s.logger.Debug("job state", "job", j.id, "state", st)
}

// start runs on the lane. It hands the frame to the detector and suspends.
func (s *Session) start(j *job) {
	s.setState(j, StateDetecting)
	j.frame = s.prepareFrame(j.original)

	resume, err := s.lane.Suspend()
	if err != nil {
		s.fail(j, ErrSessionClosed)
		return
	}
	go s.detect(j, resume)
}

func (s *Session) prepareFrame(img image.Image) image.Image {
	w, h := s.cfg.FrameWidth, s.cfg.FrameHeight
	if w == 0 || h == 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}

type detectOutcome struct {
	dets []detection.Detection
	err  error
}

// detect runs off the lane. The detector call is bounded by DetectTimeout even
// when the detector ignores its context.
func (s *Session) detect(j *job, resume Resume) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.DetectTimeout)
	defer cancel()

	start := time.Now()
	ch := make(chan detectOutcome, 1)
	go func() {
		dets, err := s.det.Detect(ctx, j.frame)
		ch <- detectOutcome{dets: dets, err: err}
	}()

	var out detectOutcome
	select {
	case out = <-ch:
	case <-ctx.Done():
		out.err = ctx.Err()
	}
	j.timing.Detect = time.Since(start)

	resume(func() { s.classify(j, out) })
}

// classify runs on the lane after detection completes.
func (s *Session) classify(j *job, out detectOutcome) {
	if out.err != nil {
		s.fail(j, &DetectionError{Err: out.err})
		return
	}

	dets := out.dets
	if s.cfg.MaxFaces > 0 && len(dets) > s.cfg.MaxFaces {
		dets = append([]detection.Detection(nil), dets...)
		detection.SortByConfidence(dets)
		dets = dets[:s.cfg.MaxFaces]
	}

	for _, det := range dets {
		s.setState(j, StateExtracting)
		crop, box, err := region.Extract(j.frame, det.Box)
		if err != nil {
			if errors.Is(err, region.ErrDegenerateRegion) {
				s.logger.Debug("face outside frame, skipped", "job", j.id, "box", det.Box)
			} else {
				s.logger.Warn("face extraction failed", "job", j.id, "box", det.Box, "error", err)
			}
			continue
		}

		s.setState(j, StatePreprocessing)
		t0 := time.Now()
		if err := s.model.Prepare(crop); err != nil {
			if errors.Is(err, emotion.ErrClosed) {
				s.fail(j, err)
				return
			}
			s.logger.Warn("face preprocessing failed", "job", j.id, "box", box, "error", err)
			continue
		}

		s.setState(j, StateInferring)
		t1 := time.Now()
		scores, err := s.model.Run()
		j.timing.Preprocess += t1.Sub(t0)
		j.timing.Infer += time.Since(t1)
		if err != nil {
			if errors.Is(err, emotion.ErrClosed) {
				s.fail(j, err)
				return
			}
			s.logger.Warn("inference failed", "job", j.id, "box", box, "error", err)
			continue
		}

		label, ok := emotion.SelectLabel(scores)
		if !ok {
			s.logger.Warn("no label selected", "job", j.id, "scores", scores)
			continue
		}
		s.logger.Debug("face classified", "job", j.id, "box", box, "label", label, "scores", scores)

		j.overlays = append(j.overlays, Overlay{
			Box:        box,
			Label:      label,
			Confidence: det.Confidence,
			Scores:     scores,
		})
	}

	s.setState(j, StateEmitting)
	s.emit(j, StateDone)
}

func (s *Session) fail(j *job, err error) {
	j.err = err
	if errors.Is(err, emotion.ErrClosed) {
		s.logger.Error("job failed", "job", j.id, "state", j.state, "error", err)
	} else {
		s.logger.Warn("job failed", "job", j.id, "state", j.state, "error", err)
	}
	s.emit(j, StateFailed)
}

func (s *Session) emit(j *job, final State) {
	j.timing.Total = time.Since(j.submitted)
	j.timing.Faces = len(j.overlays)
	j.timing.Failed = final == StateFailed

	s.sink.Emit(Result{
		JobID:     j.id,
		SessionID: s.info.ID,
		State:     final,
		Overlays:  j.overlays,
		Err:       j.err,
		Timing:    j.timing,
		Submitted: j.submitted,
		Frame:     j.frame,
	})
	s.setState(j, final)
	s.metrics.Record(j.timing)
}
