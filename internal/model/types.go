package model

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed metadata.schema.json
var metadataSchema []byte

// ErrInvalidMetadata is returned when the metadata sidecar does not
// describe a usable classifier.
var ErrInvalidMetadata = errors.New("invalid model metadata")

// Metadata describes the exported classifier: tensor names and shapes,
// the ordered class labels and the preprocessing it was trained with.
type Metadata struct {
	InputName    string    `json:"input_name,omitempty"`
	OutputName   string    `json:"output_name,omitempty"`
	InputShape   []int64   `json:"input_shape"`
	OutputShape  []int64   `json:"output_shape"`
	Classes      []string  `json:"classes"`
	ImageSize    int       `json:"image_size"`
	Mean         []float32 `json:"mean,omitempty"`
	Std          []float32 `json:"std,omitempty"`
	ApplySoftmax bool      `json:"apply_softmax"`
}

// LoadMetadata reads and validates the metadata file at path.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return ParseMetadata(data)
}

// ParseMetadata validates raw metadata JSON against the schema, fills in
// defaults and checks that the shapes agree with the class list.
func ParseMetadata(data []byte) (Metadata, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("metadata.schema.json", bytes.NewReader(metadataSchema)); err != nil {
		return Metadata{}, fmt.Errorf("load metadata schema: %w", err)
	}
	schema, err := compiler.Compile("metadata.schema.json")
	if err != nil {
		return Metadata{}, fmt.Errorf("compile metadata schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if meta.InputName == "" {
		meta.InputName = "input"
	}
	if meta.OutputName == "" {
		meta.OutputName = "output"
	}

	if got, want := elements(meta.OutputShape), int64(len(meta.Classes)); got != want {
		return Metadata{}, fmt.Errorf("%w: output shape %v holds %d values for %d classes",
			ErrInvalidMetadata, meta.OutputShape, got, want)
	}
	if got, want := elements(meta.InputShape), int64(3*meta.ImageSize*meta.ImageSize); got != want {
		return Metadata{}, fmt.Errorf("%w: input shape %v does not match 3x%dx%d",
			ErrInvalidMetadata, meta.InputShape, meta.ImageSize, meta.ImageSize)
	}
	return meta, nil
}

// InputLen is the number of float32 values the model expects.
func (m Metadata) InputLen() int {
	return int(elements(m.InputShape))
}

// Normalization returns the per-channel mean and std, falling back to
// the given defaults when the metadata leaves them out.
func (m Metadata) Normalization(defMean, defStd [3]float32) (mean, std [3]float32) {
	mean, std = defMean, defStd
	if len(m.Mean) == 3 {
		copy(mean[:], m.Mean)
	}
	if len(m.Std) == 3 {
		copy(std[:], m.Std)
	}
	return mean, std
}

func elements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
