// Package processor prepares uploaded embeddings before they reach a model.
package processor

import (
	"fmt"

	"github.com/proteinchat/proteinchat-go/pkg/config"
	"github.com/proteinchat/proteinchat-go/pkg/embedding"
	"github.com/proteinchat/proteinchat-go/pkg/registry"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Processor transforms an embedding. Implementations must not modify the input.
type Processor interface {
	Process(e *embedding.Embedding) (*embedding.Embedding, error)
}

// Factory builds a Processor from its config section.
type Factory func(cfg config.ProcessorConfig) (Processor, error)

// Registry holds the known processor classes.
var Registry = registry.New[Factory]("processor")

func init() {
	Registry.MustRegister("identity", func(config.ProcessorConfig) (Processor, error) {
		return Identity{}, nil
	})
	Registry.MustRegister("protein_embedding", func(cfg config.ProcessorConfig) (Processor, error) {
		return NewProteinProcessor(cfg)
	})
}

// FromConfig resolves cfg.Name in Registry and builds the processor.
func FromConfig(cfg config.ProcessorConfig) (Processor, error) {
	factory, err := Registry.Get(cfg.Name)
	if err != nil {
		return nil, err
	}
	return factory(cfg)
}

// Identity passes embeddings through.
type Identity struct{}

func (Identity) Process(e *embedding.Embedding) (*embedding.Embedding, error) {
	if e == nil || e.Data == nil {
		return nil, embedding.ErrEmpty
	}
	return e, nil
}

// ProteinProcessor checks the feature width, truncates long proteins and
// optionally L2-normalizes each residue.
type ProteinProcessor struct {
	MaxLength int
	Dim       int
	Normalize bool
}

// NewProteinProcessor validates cfg and returns a ProteinProcessor.
func NewProteinProcessor(cfg config.ProcessorConfig) (*ProteinProcessor, error) {
	if cfg.MaxLength < 0 {
		return nil, fmt.Errorf("max_length must be non-negative, got %d", cfg.MaxLength)
	}
	if cfg.Dim < 0 {
		return nil, fmt.Errorf("dim must be non-negative, got %d", cfg.Dim)
	}
	return &ProteinProcessor{MaxLength: cfg.MaxLength, Dim: cfg.Dim, Normalize: cfg.Normalize}, nil
}

func (p *ProteinProcessor) Process(e *embedding.Embedding) (*embedding.Embedding, error) {
	if e == nil || e.Data == nil {
		return nil, embedding.ErrEmpty
	}
	rows, dim := e.Data.Dims()
	if p.Dim > 0 && dim != p.Dim {
		return nil, fmt.Errorf("embedding %q has %d features, model expects %d", e.Name, dim, p.Dim)
	}

	keep := rows
	if p.MaxLength > 0 && rows > p.MaxLength {
		keep = p.MaxLength
	}
	out := &embedding.Embedding{
		Name: e.Name,
		Data: mat.DenseCopyOf(e.Data.Slice(0, keep, 0, dim)),
	}

	if p.Normalize {
		for i := 0; i < keep; i++ {
			row := out.Data.RawRowView(i)
			if n := floats.Norm(row, 2); n > 0 {
				floats.Scale(1/n, row)
			}
		}
	}
	return out, nil
}
