package resume

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrValidation marks a malformed save request.
var ErrValidation = errors.New("invalid resume payload")

//go:embed resume.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// DecodePatch validates raw against the save request schema and decodes it.
// An empty body is an empty patch.
func DecodePatch(raw []byte) (Patch, error) {
	var p Patch
	if len(strings.TrimSpace(string(raw))) == 0 {
		return p, nil
	}

	s, err := loadSchema()
	if err != nil {
		return p, fmt.Errorf("load resume schema: %w", err)
	}

	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return p, fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return p, nil
}
