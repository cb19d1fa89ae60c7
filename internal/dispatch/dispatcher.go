// Package dispatch classifies inbound submissions, consults the fingerprinter
// and verdict store, and either resolves immediately over the fanout bus or
// forwards the work to a queue router.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satyamark/backend/internal/fingerprint"
	"github.com/satyamark/backend/internal/metrics"
	"github.com/satyamark/backend/internal/queue"
	"github.com/satyamark/backend/internal/verdict"
	"github.com/satyamark/backend/pkg/errors"
)

// Submission is one classified-or-not inbound request.
type Submission struct {
	ClientID  string
	SessionID string
	AppID     string
	JobID     string
	Text      string
	ImageURL  string
	// ImageMode overrides the configured image pipeline for this submission.
	// Set by the REST verify routes; empty means the configured default.
	ImageMode string
}

// Enqueuer is the queue router surface the dispatcher needs.
type Enqueuer interface {
	Enqueue(job queue.Job)
}

// Publisher is the result fanout surface the dispatcher needs.
type Publisher interface {
	Publish(clientID string, payload map[string]interface{})
}

// Config carries the dispatch-time settings.
type Config struct {
	// ImageAnalysisMode selects the image pipeline: "ml" or "forensic".
	ImageAnalysisMode string
	TextCallbackURL   string
	ImageCallbackURL  string
}

// Dispatcher routes submissions through dedup into the job pipeline.
type Dispatcher struct {
	cfg        Config
	store      verdict.Store
	images     *fingerprint.ImageFetcher
	textQueue  Enqueuer
	imageQueue Enqueuer
	bus        Publisher
	log        *zap.Logger
}

// New creates a dispatcher.
func New(cfg Config, store verdict.Store, images *fingerprint.ImageFetcher,
	textQueue, imageQueue Enqueuer, bus Publisher, log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		store:      store,
		images:     images,
		textQueue:  textQueue,
		imageQueue: imageQueue,
		bus:        bus,
		log:        log.With(zap.String("module", "dispatch")),
	}
}

// Handle classifies and processes one submission. Text and image are treated
// as mutually exclusive, text winning when both are present; neither present
// is a validation error with no side effects.
func (d *Dispatcher) Handle(ctx context.Context, sub Submission) error {
	switch {
	case sub.Text != "":
		return d.handleText(ctx, sub)
	case sub.ImageURL != "":
		return d.handleImage(ctx, sub)
	default:
		return fmt.Errorf("%w: submission carries neither text nor image_url", errors.ErrInvalidInput)
	}
}

func (d *Dispatcher) handleText(ctx context.Context, sub Submission) error {
	hashes := fingerprint.HashText(sub.Text)

	stored, err := d.store.LookupText(ctx, hashes.RawHash, hashes.NormalizedHash)
	if err != nil {
		return errors.LogWithError(ctx, d.log, "text verdict lookup failed", err,
			zap.String("job_id", sub.JobID))
	}
	if stored != nil {
		metrics.CacheHits.WithLabelValues("text").Inc()
		d.log.Info("Text cache hit",
			zap.String("job_id", sub.JobID), zap.Int64("data_id", stored.ID))
		d.bus.Publish(sub.ClientID, textVerdictPayload(sub, stored))
		return nil
	}

	d.textQueue.Enqueue(queue.Job{
		JobID:       d.jobID(sub, hashes.RawHash),
		ClientID:    sub.ClientID,
		SessionID:   sub.SessionID,
		Type:        "text",
		Text:        sub.Text,
		TextHash:    hashes.RawHash,
		SummaryHash: hashes.NormalizedHash,
		CallbackURL: d.cfg.TextCallbackURL,
		StreamKey:   queue.StreamTextJobs,
	})
	return nil
}

func (d *Dispatcher) handleImage(ctx context.Context, sub Submission) error {
	hash, err := d.images.Hash(ctx, sub.ImageURL)
	if err != nil {
		return errors.LogWithError(ctx, d.log, "image fingerprint failed", err,
			zap.String("job_id", sub.JobID), zap.String("image_url", sub.ImageURL))
	}

	stored, err := d.store.LookupImage(ctx, hash, sub.ImageURL)
	if err != nil {
		return errors.LogWithError(ctx, d.log, "image verdict lookup failed", err,
			zap.String("job_id", sub.JobID))
	}
	if stored != nil {
		metrics.CacheHits.WithLabelValues("image").Inc()
		d.log.Info("Image cache hit",
			zap.String("job_id", sub.JobID), zap.Int64("data_id", stored.ID))
		d.bus.Publish(sub.ClientID, imageVerdictPayload(sub, stored))
		return nil
	}

	mode := sub.ImageMode
	if mode == "" {
		mode = d.cfg.ImageAnalysisMode
	}
	streamKey := queue.StreamImageMLJobs
	if mode == "forensic" {
		streamKey = queue.StreamImageForensicJobs
	}

	d.imageQueue.Enqueue(queue.Job{
		JobID:       d.jobID(sub, hash),
		ClientID:    sub.ClientID,
		SessionID:   sub.SessionID,
		Type:        "image",
		ImageURL:    sub.ImageURL,
		ImageHash:   hash,
		CallbackURL: d.cfg.ImageCallbackURL,
		StreamKey:   streamKey,
	})
	return nil
}

// jobID returns the submission's job id, minting one when the client did not
// supply it. The minted id embeds app, client, content and time so the job
// stays correlatable after its session is gone.
func (d *Dispatcher) jobID(sub Submission, contentID string) string {
	if sub.JobID != "" {
		return sub.JobID
	}
	if len(contentID) > 12 {
		contentID = contentID[:12]
	}
	return fmt.Sprintf("%s_%s_%s_%d_%s",
		sub.AppID, sub.ClientID, contentID, time.Now().UnixMilli(), uuid.NewString()[:8])
}

func textVerdictPayload(sub Submission, v *verdict.TextVerdict) map[string]interface{} {
	payload := map[string]interface{}{
		"jobId":      sub.JobID,
		"clientId":   sub.ClientID,
		"dataId":     v.ID,
		"mark":       v.Mark,
		"confidence": v.Confidence,
		"reason":     v.Reason,
		"type":       "text",
	}
	if v.Summary != "" {
		payload["summary"] = v.Summary
	}
	if len(v.URLs) > 0 {
		payload["urls"] = v.URLs
	}
	return payload
}

func imageVerdictPayload(sub Submission, v *verdict.ImageVerdict) map[string]interface{} {
	return map[string]interface{}{
		"jobId":      sub.JobID,
		"clientId":   sub.ClientID,
		"dataId":     v.ID,
		"mark":       v.Mark,
		"confidence": v.Confidence,
		"reason":     v.Reason,
		"image_url":  v.ImageURL,
		"type":       "image",
	}
}
