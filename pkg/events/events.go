// Package events defines event types for activation lifecycle and external
// source notifications.
package events

import (
	"errors"
	"time"
)

type EventType string

// Bus topics.
const Topic = "hookplane.events"
const SourceTopic = "hookplane.source.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowActivatedEvent   EventType = "workflow.activated"
	WorkflowDeactivatedEvent EventType = "workflow.deactivated"
	WebhookReceivedEvent     EventType = "webhook.received"
	SourceEventType          EventType = "source.event"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// WorkflowActivated is published after a workflow's webhooks and subscriptions
// are live.
type WorkflowActivated struct {
	BaseEvent

	ActivationMode string `json:"activation_mode"`
}

func (e WorkflowActivated) GetType() EventType {
	return WorkflowActivatedEvent
}

// WorkflowDeactivated is published after a workflow's routes and subscriptions
// are torn down.
type WorkflowDeactivated struct {
	BaseEvent
}

func (e WorkflowDeactivated) GetType() EventType {
	return WorkflowDeactivatedEvent
}

// WebhookReceived is published after a webhook dispatch completed.
type WebhookReceived struct {
	BaseEvent

	Method string `json:"method"`
	Path   string `json:"path"`
	Status int    `json:"status"`
}

func (e WebhookReceived) GetType() EventType {
	return WebhookReceivedEvent
}

// SourceEvent is an external trigger notification addressed to one trigger
// node of one workflow. The subscription component delivers it to the
// bridge-wrapped emit function of that node.
type SourceEvent struct {
	BaseEvent

	NodeName string         `json:"node_name"`
	Payload  map[string]any `json:"payload,omitempty"`
}

func (e SourceEvent) GetType() EventType {
	return SourceEventType
}

// Validate checks the source event addresses a concrete trigger node.
func (e *SourceEvent) Validate() error {
	if e.WorkflowID == "" {
		return errors.New("source event requires a workflow id")
	}

	if e.NodeName == "" {
		return errors.New("source event requires a node name")
	}

	return nil
}
