package api

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/fieldops/internal/apperr"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// Request body schema names. The _put variants require every field a create
// requires; the plain ones back POST and PATCH.
const (
	schemaSignup       = "signup"
	schemaLogin        = "login"
	schemaRefresh      = "refresh"
	schemaJob          = "job"
	schemaJobPut       = "job_put"
	schemaTask         = "task"
	schemaTaskPut      = "task_put"
	schemaEquipment    = "equipment"
	schemaEquipmentPut = "equipment_put"
)

// schemas is compiled once at package init and only read afterwards.
var schemas = mustLoadSchemas()

func mustLoadSchemas() map[string]*jsonschema.Schema {
	out, err := loadSchemas()
	if err != nil {
		panic(err)
	}
	return out
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}

	out := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		raw, err := schemaFiles.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(raw, rs); err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".json")] = rs
	}

	return out, nil
}

var requiredMsg = regexp.MustCompile(`^"([^"]+)" value is required`)

// validateBody checks body against the named schema. Malformed JSON and
// schema violations both come back as *apperr.ValidationError.
func validateBody(ctx context.Context, name string, body []byte) error {
	rs, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown request schema %q", name)
	}

	if !json.Valid(body) {
		return apperr.NewValidation(nonFieldErrors, "Malformed JSON body.")
	}

	kerrs, err := rs.ValidateBytes(ctx, body)
	if err != nil {
		return apperr.NewValidation(nonFieldErrors, "Malformed JSON body.")
	}
	if len(kerrs) == 0 {
		return nil
	}

	v := &apperr.ValidationError{}
	for _, ke := range kerrs {
		field, msg := keyErrorField(ke)
		v.Add(field, msg)
	}

	return v
}

// keyErrorField maps a schema error to the body field it concerns. Errors on
// the document root name the field only in their message.
func keyErrorField(ke jsonschema.KeyError) (string, string) {
	if m := requiredMsg.FindStringSubmatch(ke.Message); m != nil {
		return m[1], "This field is required."
	}

	p := strings.Trim(ke.PropertyPath, "/")
	if p == "" {
		return nonFieldErrors, ke.Message
	}
	if i := strings.Index(p, "/"); i >= 0 {
		p = p[:i]
	}

	return p, ke.Message
}
