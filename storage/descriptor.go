package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"myhome-publisher/models"
)

// ErrDescriptor marks a listing folder whose descriptor is missing or malformed.
var ErrDescriptor = errors.New("descriptor")

//go:embed schema/listing.schema.json
var listingSchema []byte

const schemaURL = "listing.schema.json"

// DescriptorLoader reads and validates the descriptor file of a listing folder.
type DescriptorLoader struct {
	fileName string
	schema   *jsonschema.Schema
}

// NewDescriptorLoader compiles the embedded schema. fileName is the
// descriptor's name inside every listing folder.
func NewDescriptorLoader(fileName string) (*DescriptorLoader, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(listingSchema)); err != nil {
		return nil, fmt.Errorf("descriptor: add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("descriptor: compile schema: %w", err)
	}
	return &DescriptorLoader{fileName: fileName, schema: schema}, nil
}

// Load reads dir/<fileName>, validates it and decodes it.
func (l *DescriptorLoader) Load(dir string) (*models.PropertyListing, error) {
	path := filepath.Join(dir, l.fileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrDescriptor, path, err)
	}
	return l.Parse(path, data)
}

// Parse validates and decodes descriptor content; name is only used in errors.
func (l *DescriptorLoader) Parse(name string, data []byte) (*models.PropertyListing, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrDescriptor, name, err)
	}
	if err := l.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s does not match schema: %v", ErrDescriptor, name, err)
	}

	var listing models.PropertyListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrDescriptor, name, err)
	}
	return &listing, nil
}
