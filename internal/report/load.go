package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads a bundle from a YAML or JSON file. A body_file entry is read
// relative to the bundle's directory and replaces Body.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}

	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing bundle %s: %w", path, err)
	}
	b.Path = path

	if b.BodyFile != "" {
		bodyPath := b.BodyFile
		if !filepath.IsAbs(bodyPath) {
			bodyPath = filepath.Join(filepath.Dir(path), bodyPath)
		}
		body, err := os.ReadFile(bodyPath)
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}
		b.Body = string(body)
	}
	return b, nil
}

// Parse decodes and validates bundle bytes. JSON input is accepted since it
// decodes as YAML.
func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if err := Validate(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks required fields and enum values, and that source and
// signal ids are unique.
func Validate(b *Bundle) error {
	if err := validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid bundle: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	seen := make(map[int]bool, len(b.Sources))
	for _, s := range b.Sources {
		if seen[s.ID] {
			return fmt.Errorf("invalid bundle: duplicate source id %d", s.ID)
		}
		seen[s.ID] = true
	}

	signals := make(map[string]bool, len(b.Signals))
	for _, s := range b.Signals {
		if signals[s.ID] {
			return fmt.Errorf("invalid bundle: duplicate signal id %q", s.ID)
		}
		signals[s.ID] = true
	}
	return nil
}
