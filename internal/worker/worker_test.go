package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// stubAssessor returns canned responses and counts invocations.
type stubAssessor struct {
	calls    atomic.Int64
	highRisk bool
}

func (s *stubAssessor) Assess(ctx context.Context, req *domain.AssessmentRequest) (*domain.AssessmentResponse, error) {
	s.calls.Add(1)
	resp := &domain.AssessmentResponse{
		AssessmentID: "assess-001",
		CustomerID:   req.CustomerID,
		RiskScore:    150,
		RiskCategory: domain.CategoryLow,
	}
	if s.highRisk {
		resp.RiskScore = 850
		resp.RiskCategory = domain.CategoryCritical
		resp.IsHighRisk = true
	}
	return resp, nil
}

func publishRequest(t *testing.T, eventBus domain.EventPublisher, customerID string) {
	t.Helper()
	payload, err := json.Marshal(&domain.AssessmentRequest{CustomerID: customerID})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := eventBus.Publish(context.Background(), domain.TopicAssessmentRequested, customerID, payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWorkerProcessesRequests(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	assessor := &stubAssessor{}
	w := NewWorker(eventBus, assessor, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	publishRequest(t, eventBus, "cust-001")
	publishRequest(t, eventBus, "cust-002")

	waitFor(t, func() bool { return assessor.calls.Load() == 2 })
}

func TestWorkerForwardsHighRiskToAlertTopic(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	var alerts atomic.Int64
	_, err := eventBus.Subscribe(context.Background(), domain.TopicFraudAlert, func(ctx context.Context, msg *domain.Message) error {
		alerts.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	assessor := &stubAssessor{highRisk: true}
	w := NewWorker(eventBus, assessor, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	publishRequest(t, eventBus, "cust-003")

	waitFor(t, func() bool { return alerts.Load() == 1 })
}

func TestWorkerStop(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	assessor := &stubAssessor{}
	w := NewWorker(eventBus, assessor, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	publishRequest(t, eventBus, "cust-004")
	time.Sleep(30 * time.Millisecond)

	if assessor.calls.Load() != 0 {
		t.Errorf("stopped worker must not process messages, got %d", assessor.calls.Load())
	}
}
