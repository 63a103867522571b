package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a layout from a YAML or JSON file (by extension),
// applies defaults and validates it. The returned spec is ready for
// planning.
func LoadFile(path string) (*LayoutSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}

	var spec LayoutSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := checkSchema(raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported layout format %q", ErrInvalidLayout, filepath.Ext(path))
	}

	out := spec.WithDefaults()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkSchema(raw []byte) error {
	res, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(layoutSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidLayout, strings.Join(msgs, "; "))
	}
	return nil
}
