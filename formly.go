// Package formly is the convenience entry point: load a field configuration
// document, build the reactive form and get the model back.
package formly

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formly/pkg/fieldconfig"
	"github.com/goliatone/go-formly/pkg/form"
)

// FieldConfig aliases form.FieldConfig for callers that only import the root
// package.
type FieldConfig = form.FieldConfig

// Model aliases form.Model.
type Model = form.Model

// Document aliases fieldconfig.Document.
type Document = fieldconfig.Document

// Build builds a form from in-memory field configurations.
func Build(fields []FieldConfig, model Model, options ...form.Option) (*form.Form, error) {
	return form.Build(fields, model, options...)
}

// BuildDocument validates doc and builds its form. The document's model and
// form state are used unless options override them.
func BuildDocument(doc Document, options ...form.Option) (*form.Form, error) {
	if err := fieldconfig.Validate(doc.Fields); err != nil {
		return nil, fmt.Errorf("formly: %s: %w", doc.Source, err)
	}
	model := doc.Model
	if model == nil {
		model = Model{}
	}
	base := []form.Option{}
	if doc.FormState != nil {
		base = append(base, form.WithFormState(doc.FormState))
	}
	return form.Build(doc.Fields, model, append(base, options...)...)
}

// BuildFile loads the document at path and builds its form.
func BuildFile(path string, options ...form.Option) (*form.Form, error) {
	doc, err := fieldconfig.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return BuildDocument(doc, options...)
}

// BuildOpenAPI derives fields from a component schema of the OpenAPI document
// at path and builds a form over model.
func BuildOpenAPI(ctx context.Context, path, schemaName string, model Model, options ...form.Option) (*form.Form, error) {
	fields, err := fieldconfig.FromOpenAPI(ctx, path, schemaName)
	if err != nil {
		return nil, err
	}
	return BuildDocument(Document{Source: path, Fields: fields, Model: model}, options...)
}
