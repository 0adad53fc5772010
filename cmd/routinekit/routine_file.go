package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/routinekit/internal/validation"
	"github.com/rendis/routinekit/pkg/schema"
)

// readRoutine loads a routine document from path, or stdin when path is "-".
// YAML files (.yaml, .yml) are converted to JSON before schema validation.
func readRoutine(ctx context.Context, in io.Reader, path string, v validation.Validator) (*schema.Routine, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read routine: %w", err)
	}

	if isYAML(path) {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml %s: %w", path, err)
		}
		if raw, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("convert yaml %s: %w", path, err)
		}
	}

	if v != nil {
		if err := v.ValidateDocument(ctx, raw); err != nil {
			return nil, err
		}
	}

	var r schema.Routine
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse routine %s: %w", path, err)
	}
	return &r, nil
}

// writeRoutine writes r to path in the format its extension names, or as
// indented JSON to out when path is empty or "-".
func writeRoutine(out io.Writer, path string, r *schema.Routine) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode routine: %w", err)
	}

	if isYAML(path) {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("encode routine: %w", err)
		}
		if raw, err = yaml.Marshal(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
	} else {
		raw = append(raw, '\n')
	}

	if path == "" || path == "-" {
		_, err = out.Write(raw)
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
