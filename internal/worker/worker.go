// Package worker provides async assessment processing from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Assessor runs one risk assessment. It is implemented by engine.Engine.
type Assessor interface {
	Assess(ctx context.Context, req *domain.AssessmentRequest) (*domain.AssessmentResponse, error)
}

// Worker consumes assessment requests from the bus and runs them through
// the engine. High-risk outcomes are forwarded to the fraud alert topic.
type Worker struct {
	bus      domain.EventPublisher
	assessor Assessor
	logger   *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventPublisher, assessor Assessor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		assessor: assessor,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the assessment request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicAssessmentRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("assessment worker started",
		"topic", domain.TopicAssessmentRequested)
	return nil
}

// handleMessage processes one queued assessment request.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req domain.AssessmentRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		// A malformed message is dropped, not retried.
		w.logger.Error("failed to parse assessment request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.CorrelationID == "" {
		req.CorrelationID = msg.ID
	}

	resp, err := w.assessor.Assess(ctx, &req)
	if err != nil {
		w.logger.Error("queued assessment failed",
			"message_id", msg.ID,
			"customer_id", req.CustomerID,
			"error", err,
		)
		return err
	}

	if resp.IsHighRisk {
		payload, err := json.Marshal(resp)
		if err != nil {
			w.logger.Error("failed to encode fraud alert event",
				"assessment_id", resp.AssessmentID,
				"error", err,
			)
		} else if err := w.bus.Publish(ctx, domain.TopicFraudAlert, req.CustomerID, payload); err != nil {
			w.logger.Error("failed to publish fraud alert event",
				"assessment_id", resp.AssessmentID,
				"error", err,
			)
		}
	}

	w.logger.Info("queued assessment processed",
		"assessment_id", resp.AssessmentID,
		"customer_id", req.CustomerID,
		"risk_score", resp.RiskScore,
		"risk_category", resp.RiskCategory,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.logger.Info("assessment worker stopped")
	return nil
}
