package embedding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"
)

// Load reads an embedding from a .npy or .json file.
func Load(path string) (*Embedding, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		return loadNPY(path, name)
	case ".json":
		return loadJSON(path, name)
	case ".pt", ".pth":
		return nil, fmt.Errorf("%s: torch checkpoints are not readable here; export the tensor with numpy.save to .npy", path)
	default:
		return nil, fmt.Errorf("%s: unsupported embedding format %q", path, filepath.Ext(path))
	}
}

func loadNPY(path, name string) (*Embedding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if r.Header.Descr.Fortran {
		return nil, fmt.Errorf("%s: fortran-ordered arrays are not supported", path)
	}
	rows, dim, err := matrixShape(r.Header.Descr.Shape)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var data []float64
	switch r.Header.Descr.Type {
	case "<f4", "f4", "float32":
		var raw []float32
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		data = make([]float64, len(raw))
		for i, v := range raw {
			data[i] = float64(v)
		}
	case "<f8", "f8", "float64":
		if err := r.Read(&data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported dtype %q", path, r.Header.Descr.Type)
	}

	e, err := FromFlat(name, data, rows, dim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

// matrixShape squeezes leading batch dimensions of size one and maps
// [D] to a single row.
func matrixShape(shape []int) (int, int, error) {
	for len(shape) > 2 && shape[0] == 1 {
		shape = shape[1:]
	}
	switch len(shape) {
	case 1:
		return 1, shape[0], nil
	case 2:
		return shape[0], shape[1], nil
	default:
		return 0, 0, fmt.Errorf("unsupported shape %v", shape)
	}
}

func loadJSON(path, name string) (*Embedding, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rows, err := DecodeJSON(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	e, err := FromRows(name, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

// DecodeJSON accepts either a matrix ([[...], ...]) or a single vector.
func DecodeJSON(content []byte) ([][]float64, error) {
	var rows [][]float64
	if err := json.Unmarshal(content, &rows); err == nil {
		return rows, nil
	}
	var vec []float64
	if err := json.Unmarshal(content, &vec); err != nil {
		return nil, fmt.Errorf("expected a JSON number matrix or vector: %w", err)
	}
	return [][]float64{vec}, nil
}
