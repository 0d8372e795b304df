package processor

import (
	"errors"
	"math"
	"testing"

	"github.com/proteinchat/proteinchat-go/pkg/config"
	"github.com/proteinchat/proteinchat-go/pkg/embedding"
)

func mustEmbedding(t *testing.T, rows [][]float64) *embedding.Embedding {
	t.Helper()
	e, err := embedding.FromRows("test", rows)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	return e
}

func TestFromConfigResolvesRegisteredNames(t *testing.T) {
	p, err := FromConfig(config.ProcessorConfig{Name: "protein_embedding", MaxLength: 4})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if pp, ok := p.(*ProteinProcessor); !ok || pp.MaxLength != 4 {
		t.Fatalf("unexpected processor: %#v", p)
	}

	if _, err := FromConfig(config.ProcessorConfig{Name: "blip2_image_train"}); err == nil {
		t.Fatal("expected error for unknown processor")
	}
}

func TestProteinProcessorTruncatesWithoutTouchingInput(t *testing.T) {
	in := mustEmbedding(t, [][]float64{{1, 0}, {0, 1}, {1, 1}})
	p := &ProteinProcessor{MaxLength: 2}

	out, err := p.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Rows() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.Rows())
	}
	out.Data.Set(0, 0, 42)
	if in.Data.At(0, 0) != 1 {
		t.Fatal("expected input to be untouched")
	}
	if in.Rows() != 3 {
		t.Fatalf("expected input to keep 3 rows, got %d", in.Rows())
	}
}

func TestProteinProcessorNormalizesRows(t *testing.T) {
	in := mustEmbedding(t, [][]float64{{3, 4}, {0, 0}})
	p := &ProteinProcessor{Normalize: true}

	out, err := p.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if math.Abs(out.Data.At(0, 0)-0.6) > 1e-12 || math.Abs(out.Data.At(0, 1)-0.8) > 1e-12 {
		t.Fatalf("unexpected normalized row: %v", out.Data.RawRowView(0))
	}
	if out.Data.At(1, 0) != 0 || out.Data.At(1, 1) != 0 {
		t.Fatal("expected zero row to stay zero")
	}
}

func TestProteinProcessorChecksDim(t *testing.T) {
	p := &ProteinProcessor{Dim: 512}
	if _, err := p.Process(mustEmbedding(t, [][]float64{{1, 2}})); err == nil {
		t.Fatal("expected dim mismatch error")
	}
	if _, err := p.Process(nil); err == nil {
		t.Fatal("expected error for nil embedding")
	}
}

func TestNewProteinProcessorRejectsNegativeValues(t *testing.T) {
	if _, err := NewProteinProcessor(config.ProcessorConfig{MaxLength: -1}); err == nil {
		t.Fatal("expected error for negative max_length")
	}
	if _, err := NewProteinProcessor(config.ProcessorConfig{Dim: -1}); err == nil {
		t.Fatal("expected error for negative dim")
	}
}

func TestIdentity(t *testing.T) {
	in := mustEmbedding(t, [][]float64{{1}})
	out, err := Identity{}.Process(in)
	if err != nil || out != in {
		t.Fatalf("expected identity, got %v %v", out, err)
	}
	if _, err := (Identity{}).Process(&embedding.Embedding{Name: "zero"}); !errors.Is(err, embedding.ErrEmpty) {
		t.Fatalf("expected ErrEmpty for an embedding without data, got %v", err)
	}
}
