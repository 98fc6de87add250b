package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventPublisher is a best-effort asynchronous event bus. Publish is
// fire-and-forget by design: implementations must honor the context
// deadline as a bound and must never block indefinitely.
type EventPublisher interface {
	// Publish sends a payload to a topic. The key carries the partition
	// identity (customer ID) so same-key events keep their order where the
	// transport supports it.
	Publish(ctx context.Context, topic string, key string, payload []byte) error

	// Subscribe registers a handler for a topic.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope carried by the bus.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Key       string `json:"key,omitempty"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// BusConfig holds configuration for event publisher initialization.
type BusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Topics published and consumed by the assessment pipeline.
const (
	TopicAssessmentRequested = "assessment.requested"
	TopicAssessmentCompleted = "assessment.completed"
	TopicFraudAlert          = "fraud.alert"
)

// Event priority levels.
const (
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
)

// AssessmentEvent is published once per completed assessment.
type AssessmentEvent struct {
	EventID       string            `json:"eventId"`
	Timestamp     time.Time         `json:"timestamp"`
	CustomerID    string            `json:"customerId"`
	CorrelationID string            `json:"correlationId,omitempty"`
	PriorityLevel string            `json:"priorityLevel"`
	RequestEcho   AssessmentRequest `json:"requestEcho"`
	Metadata      EventMetadata     `json:"metadata"`
}

// EventMetadata summarizes the assessment outcome for downstream consumers.
type EventMetadata struct {
	FinalRiskScore       int          `json:"final_risk_score"`
	RiskCategory         RiskCategory `json:"risk_category"`
	ConfidenceLevel      int          `json:"confidence_level"`
	RequiresManualReview bool         `json:"requires_manual_review"`
	RecommendationCount  int          `json:"recommendation_count"`
	CustomerIDHash       string       `json:"customer_id_hash"`
}

// HashCustomerID returns a stable hex digest suitable for correlating
// events without exposing the raw customer identifier.
func HashCustomerID(customerID string) string {
	sum := sha256.Sum256([]byte(customerID))
	return hex.EncodeToString(sum[:])
}
