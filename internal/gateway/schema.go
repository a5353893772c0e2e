package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Schema parses a raw model response into a caller-owned value. Decode must
// leave the destination untouched when it returns an error.
type Schema interface {
	Name() string
	Decode(raw string) error
	// RepairHint describes the expected output for the repair instruction.
	RepairHint() string
}

// Required is implemented by records that declare mandatory top-level keys.
type Required interface {
	RequiredFields() []string
}

// Validator is implemented by records with constraints beyond their shape.
type Validator interface {
	Validate() error
}

type jsonSchema[T any] struct {
	out *T
}

// JSON returns a closed schema for T. Keys are taken from the json struct
// tags; unknown keys and missing required keys make the response invalid.
// Scalars are coerced where unambiguous, e.g. "85" into an int.
func JSON[T any](out *T) Schema {
	return &jsonSchema[T]{out: out}
}

func (s *jsonSchema[T]) Name() string {
	return typeName[T]()
}

func (s *jsonSchema[T]) RepairHint() string {
	fields := jsonFields(reflect.TypeOf((*T)(nil)).Elem())
	return fmt.Sprintf("a single JSON object (%s) with exactly these keys: %s", s.Name(), strings.Join(fields, ", "))
}

func (s *jsonSchema[T]) Decode(raw string) error {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}

	var decoded T
	if req, ok := any(&decoded).(Required); ok {
		var missing []string
		for _, key := range req.RequiredFields() {
			if value, ok := data[key]; !ok || value == nil {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &decoded,
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if v, ok := any(&decoded).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
	}

	*s.out = decoded
	return nil
}

type textSchema struct {
	name     string
	hint     string
	out      *string
	validate func(string) error
}

// Text returns a schema for free-form output. Markdown code fences are
// stripped; an empty body is invalid. validate may be nil.
func Text(name string, out *string, hint string, validate func(string) error) Schema {
	return &textSchema{name: name, hint: hint, out: out, validate: validate}
}

func (s *textSchema) Name() string { return s.name }

func (s *textSchema) RepairHint() string {
	if s.hint == "" {
		return "plain text only"
	}
	return s.hint
}

func (s *textSchema) Decode(raw string) error {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return errors.New("empty response")
	}

	if s.validate != nil {
		if err := s.validate(cleaned); err != nil {
			return err
		}
	}

	*s.out = cleaned
	return nil
}

func extractJSON(raw string) string {
	raw = stripFences(raw)
	if strings.HasPrefix(raw, "{") {
		return raw
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		if nl := strings.IndexByte(raw, '\n'); nl != -1 && !strings.ContainsAny(raw[:nl], " {") {
			// drop the language tag, e.g. ```json or ```latex
			raw = raw[nl+1:]
		}
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func jsonFields(t reflect.Type) []string {
	if t.Kind() != reflect.Struct {
		return nil
	}

	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		fields = append(fields, name)
	}
	return fields
}
