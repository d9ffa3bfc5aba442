// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package schema compiles JSON schemas and validates documents against them.
package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/xeipuuv/gojsonschema"
)

// Set holds compiled JSON schemas by their $id
type Set struct {
	mu       sync.RWMutex
	compiled map[string]*gojsonschema.Schema
}

// ValidationError lists everything a document violates
type ValidationError struct {
	SchemaID string
	Problems []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "the document is not valid against %s:", e.SchemaID)
	for _, p := range e.Problems {
		fmt.Fprintf(&b, "\n- %s", p)
	}
	return b.String()
}

// NewSet returns an empty Set
func NewSet() *Set {
	return &Set{compiled: map[string]*gojsonschema.Schema{}}
}

// Add compiles document and stores it under its $id, replacing a schema with the same id.
// The document is JSON text, either as string or []byte, or a Go value which marshals to a
// schema. Add returns the $id.
func (s *Set) Add(document interface{}) (string, error) {
	var data []byte
	switch d := document.(type) {
	case string:
		data = []byte(d)
	case []byte:
		data = d
	default:
		var err error
		if data, err = json.Marshal(d); err != nil {
			return "", fmt.Errorf("cannot marshal schema: %w", err)
		}
	}

	var header struct {
		ID string `json:"$id"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return "", fmt.Errorf("parse error in schema: %w", err)
	}
	if header.ID == "" {
		return "", fmt.Errorf("schema does not contain $id: '%s'", data)
	}
	compiled, err := gojsonschema.NewSchemaLoader().Compile(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return "", fmt.Errorf("cannot compile schema %s: %w", header.ID, err)
	}

	s.mu.Lock()
	s.compiled[header.ID] = compiled
	s.mu.Unlock()
	return header.ID, nil
}

// Has returns true if a schema with id has been added
func (s *Set) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.compiled[id]
	return ok
}

// Validate validates the Go value document against the schema id. A document which
// violates the schema yields a *ValidationError.
func (s *Set) Validate(document interface{}, id string) error {
	s.mu.RLock()
	compiled, ok := s.compiled[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("there is no schema %s", id)
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("cannot validate with schema %s: %w", id, err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{SchemaID: id}
	for _, e := range result.Errors() {
		verr.Problems = append(verr.Problems, e.String())
	}
	return verr
}
