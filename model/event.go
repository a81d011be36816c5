package model

import (
	"fmt"
	"time"
)

type EventKind string

const EVENT_FILE_ADDED EventKind = "FILE_ADDED"
const EVENT_TEMPLATE_MATCHED EventKind = "TEMPLATE_MATCHED"
const EVENT_SCHEDULE_FIRED EventKind = "SCHEDULE_FIRED"
const EVENT_WEBHOOK_RECEIVED EventKind = "WEBHOOK_RECEIVED"
const EVENT_EMAIL_RECEIVED EventKind = "EMAIL_RECEIVED"

// Event is an immutable occurrence from an external source. Exactly one
// payload pointer is set, matching Kind. IdempotencyKey is unique within
// the event's kind; redeliveries reuse the same key.
type Event struct {
	Kind           EventKind               `json:"kind"`
	IdempotencyKey string                  `json:"idempotencyKey"`
	ReceivedAt     time.Time               `json:"receivedAt"`
	File           *FileAddedPayload       `json:"file,omitempty"`
	Template       *TemplateMatchedPayload `json:"template,omitempty"`
	Schedule       *ScheduleFiredPayload   `json:"schedule,omitempty"`
	Webhook        *WebhookPayload         `json:"webhook,omitempty"`
	Email          *EmailPayload           `json:"email,omitempty"`
}

type FileAddedPayload struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

type TemplateMatchedPayload struct {
	TemplateName string  `json:"templateName"`
	Confidence   float64 `json:"confidence"`
	DocumentPath string  `json:"documentPath"`
}

type ScheduleFiredPayload struct {
	JobId      string    `json:"jobId"`
	WorkflowId string    `json:"workflowId"`
	FireAt     time.Time `json:"fireAt"`
}

type WebhookPayload struct {
	Path string         `json:"path"`
	Body map[string]any `json:"body"`
}

type EmailPayload struct {
	MessageId   string   `json:"messageId"`
	From        string   `json:"from"`
	Subject     string   `json:"subject"`
	Attachments []string `json:"attachments"`
}

func NewFileAddedEvent(path string, size int64, checksum string) Event {
	return Event{
		Kind:           EVENT_FILE_ADDED,
		IdempotencyKey: fmt.Sprintf("%s:%s", path, checksum),
		ReceivedAt:     time.Now(),
		File:           &FileAddedPayload{Path: path, Size: size, Checksum: checksum},
	}
}

func NewTemplateMatchedEvent(documentPath string, templateName string, confidence float64) Event {
	return Event{
		Kind:           EVENT_TEMPLATE_MATCHED,
		IdempotencyKey: fmt.Sprintf("%s:%s", documentPath, templateName),
		ReceivedAt:     time.Now(),
		Template:       &TemplateMatchedPayload{TemplateName: templateName, Confidence: confidence, DocumentPath: documentPath},
	}
}

func NewScheduleFiredEvent(jobId string, workflowId string, fireAt time.Time) Event {
	return Event{
		Kind:           EVENT_SCHEDULE_FIRED,
		IdempotencyKey: fmt.Sprintf("%s:%s", jobId, fireAt.UTC().Format(time.RFC3339)),
		ReceivedAt:     time.Now(),
		Schedule:       &ScheduleFiredPayload{JobId: jobId, WorkflowId: workflowId, FireAt: fireAt},
	}
}

func NewWebhookEvent(path string, body map[string]any, idempotencyKey string) Event {
	return Event{
		Kind:           EVENT_WEBHOOK_RECEIVED,
		IdempotencyKey: idempotencyKey,
		ReceivedAt:     time.Now(),
		Webhook:        &WebhookPayload{Path: path, Body: body},
	}
}

func NewEmailEvent(messageId string, from string, subject string, attachments []string) Event {
	return Event{
		Kind:           EVENT_EMAIL_RECEIVED,
		IdempotencyKey: messageId,
		ReceivedAt:     time.Now(),
		Email:          &EmailPayload{MessageId: messageId, From: from, Subject: subject, Attachments: attachments},
	}
}

func (e Event) Validate() error {
	if len(e.IdempotencyKey) == 0 {
		return fmt.Errorf("event idempotency key can not be empty")
	}
	var want, others bool
	switch e.Kind {
	case EVENT_FILE_ADDED:
		want = e.File != nil
		others = e.Template != nil || e.Schedule != nil || e.Webhook != nil || e.Email != nil
	case EVENT_TEMPLATE_MATCHED:
		want = e.Template != nil
		others = e.File != nil || e.Schedule != nil || e.Webhook != nil || e.Email != nil
	case EVENT_SCHEDULE_FIRED:
		want = e.Schedule != nil
		others = e.File != nil || e.Template != nil || e.Webhook != nil || e.Email != nil
	case EVENT_WEBHOOK_RECEIVED:
		want = e.Webhook != nil
		others = e.File != nil || e.Template != nil || e.Schedule != nil || e.Email != nil
	case EVENT_EMAIL_RECEIVED:
		want = e.Email != nil
		others = e.File != nil || e.Template != nil || e.Schedule != nil || e.Webhook != nil
	default:
		return fmt.Errorf("unknown event kind %s", e.Kind)
	}
	if !want {
		return fmt.Errorf("event of kind %s has no %s payload", e.Kind, e.Kind)
	}
	if others {
		return fmt.Errorf("event of kind %s carries a payload of another kind", e.Kind)
	}
	return nil
}

// Data returns the payload as the seed of a run context, flat per kind so
// parameter templates can address fields as event.path, event.body.x etc.
func (e Event) Data() map[string]any {
	data := map[string]any{
		"kind":           string(e.Kind),
		"idempotencyKey": e.IdempotencyKey,
		"receivedAt":     e.ReceivedAt.UTC().Format(time.RFC3339),
	}
	switch e.Kind {
	case EVENT_FILE_ADDED:
		data["path"] = e.File.Path
		data["size"] = e.File.Size
		data["checksum"] = e.File.Checksum
	case EVENT_TEMPLATE_MATCHED:
		data["templateName"] = e.Template.TemplateName
		data["confidence"] = e.Template.Confidence
		data["documentPath"] = e.Template.DocumentPath
	case EVENT_SCHEDULE_FIRED:
		data["jobId"] = e.Schedule.JobId
		data["workflowId"] = e.Schedule.WorkflowId
		data["fireAt"] = e.Schedule.FireAt.UTC().Format(time.RFC3339)
	case EVENT_WEBHOOK_RECEIVED:
		data["path"] = e.Webhook.Path
		data["body"] = e.Webhook.Body
	case EVENT_EMAIL_RECEIVED:
		data["messageId"] = e.Email.MessageId
		data["from"] = e.Email.From
		data["subject"] = e.Email.Subject
		data["attachments"] = e.Email.Attachments
	}
	return data
}
