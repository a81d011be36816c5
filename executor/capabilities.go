// Package executor holds the capability ports the document actions
// call out to, default implementations for them, and the pollers that
// feed parked execution requests back into the engine.
package executor

import (
	"context"
	"fmt"

	"docflow/model"
)

// OCRExecutor turns a document into recognized text blocks.
type OCRExecutor interface {
	Process(ctx context.Context, documentPath string, language string) (map[string]any, error)
}

// FieldExtractor pulls structured fields out of a recognized document
// using a template.
type FieldExtractor interface {
	Extract(ctx context.Context, documentPath string, templateName string) (map[string]any, error)
}

type Mailer interface {
	Send(ctx context.Context, to []string, subject string, body string, attachments []string) error
}

// FileMover relocates a document. It returns the final target path.
type FileMover interface {
	Move(ctx context.Context, source string, target string, copyOnly bool) (string, error)
}

type WebhookCaller interface {
	Call(ctx context.Context, url string, method string, headers map[string]string, body map[string]any) (map[string]any, error)
}

// Capabilities bundles every port the actions can reach. The embedding
// system replaces individual entries; the rest fall back to defaults.
type Capabilities struct {
	OCR       OCRExecutor
	Extractor FieldExtractor
	Mailer    Mailer
	Files     FileMover
	Webhooks  WebhookCaller
}

// DefaultCapabilities wires local file handling and HTTP webhooks.
// OCR, extraction and mail have no in-process default and fail fatally
// until the embedding system injects real ones.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		OCR:       unconfiguredOCR{},
		Extractor: unconfiguredExtractor{},
		Mailer:    unconfiguredMailer{},
		Files:     NewLocalFileMover(),
		Webhooks:  NewHttpWebhookCaller(),
	}
}

type unconfiguredOCR struct{}

func (unconfiguredOCR) Process(ctx context.Context, documentPath string, language string) (map[string]any, error) {
	return nil, model.NewFatalError(fmt.Errorf("no OCR engine configured"))
}

type unconfiguredExtractor struct{}

func (unconfiguredExtractor) Extract(ctx context.Context, documentPath string, templateName string) (map[string]any, error) {
	return nil, model.NewFatalError(fmt.Errorf("no field extractor configured"))
}

type unconfiguredMailer struct{}

func (unconfiguredMailer) Send(ctx context.Context, to []string, subject string, body string, attachments []string) error {
	return model.NewFatalError(fmt.Errorf("no mailer configured"))
}
