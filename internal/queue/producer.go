package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	PhotosStreamName   = "PHOTOS"
	PhotosSubjectBase  = "photos.ready"
	MatchesStreamName  = "MATCHES"
	MatchesSubjectBase = "matches"

	// CaseControlSubject carries case closed/deleted messages via core
	// NATS; the worker expires matches for the case on receipt.
	CaseControlSubject = "case.control"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        PhotosStreamName,
			Subjects:    []string{PhotosSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     500000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  30 * time.Second,
			Description: "Photo-ready tasks for matching workers",
		},
		{
			Name:        MatchesStreamName,
			Subjects:    []string{MatchesSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      7 * 24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Match created/updated/resolved events",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishPhotoTask publishes a photo-ready task for the matching workers.
func (p *Producer) PublishPhotoTask(ctx context.Context, caseID string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal photo task: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", PhotosSubjectBase, caseID)
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publish photo task: %w", err)
	}
	return nil
}

// PublishMatchEvent publishes a match lifecycle event. eventType becomes
// part of the subject so consumers can filter created/updated/resolved.
func (p *Producer) PublishMatchEvent(ctx context.Context, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal match event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", MatchesSubjectBase, eventType)
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publish match event: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending messages in the PHOTOS stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, PhotosStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

// PublishCaseControl publishes a case control command via raw NATS.
func (p *Producer) PublishCaseControl(data []byte) error {
	return p.nc.Publish(CaseControlSubject, data)
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
