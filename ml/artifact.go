package ml

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	FormatDecisionTree = "decision_tree"
	FormatRandomForest = "random_forest"
)

// Artifact is the on-disk envelope of a trained model. Files may be gzip
// compressed; compression is detected from the content, not the name.
type Artifact struct {
	Format    string       `json:"format"`
	Version   string       `json:"version"`
	NFeatures int          `json:"n_features"`
	Classes   []int        `json:"classes,omitempty"`
	Nodes     []TreeNode   `json:"nodes,omitempty"`
	Trees     [][]TreeNode `json:"trees,omitempty"`
}

// LoadModel reads the artifact at path. When expectFeatures is positive the
// artifact must have been trained on exactly that many features.
func LoadModel(path string, expectFeatures int) (Model, Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}
	defer file.Close()

	model, info, err := DecodeModel(file, expectFeatures)
	if err != nil {
		return nil, Info{}, fmt.Errorf("%s: %w", path, err)
	}
	info.Path = path
	return model, info, nil
}

// DecodeModel decodes an artifact from r.
func DecodeModel(r io.Reader, expectFeatures int) (Model, Info, error) {
	artifact, err := readArtifact(r)
	if err != nil {
		return nil, Info{}, err
	}
	if expectFeatures > 0 && artifact.NFeatures != expectFeatures {
		return nil, Info{}, fmt.Errorf("%w: artifact expects %d features, schema has %d",
			ErrArtifactLoad, artifact.NFeatures, expectFeatures)
	}

	info := Info{
		Format:    artifact.Format,
		Version:   artifact.Version,
		NFeatures: artifact.NFeatures,
		Classes:   artifact.Classes,
		LoadedAt:  time.Now(),
	}

	switch artifact.Format {
	case FormatDecisionTree:
		tree, err := NewDecisionTree(artifact.Nodes, artifact.NFeatures)
		if err != nil {
			return nil, Info{}, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
		}
		return tree, info, nil
	case FormatRandomForest:
		forest, err := NewRandomForest(artifact.Trees, artifact.NFeatures)
		if err != nil {
			return nil, Info{}, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
		}
		return forest, info, nil
	default:
		return nil, Info{}, fmt.Errorf("%w: unsupported model format %q", ErrArtifactLoad, artifact.Format)
	}
}

func readArtifact(r io.Reader) (*Artifact, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
		}
		defer zr.Close()
		src = zr
	}

	var artifact Artifact
	if err := json.NewDecoder(src).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}
	if artifact.NFeatures <= 0 {
		return nil, fmt.Errorf("%w: n_features must be positive", ErrArtifactLoad)
	}
	return &artifact, nil
}

// WriteArtifact writes a to path, gzip compressed when the name ends in .gz.
// The file is written to a temporary name and renamed so a watching process
// never sees a partial artifact.
func WriteArtifact(path string, a Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	var w io.Writer = tmp
	var zw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(tmp)
		w = zw
	}
	if err := json.NewEncoder(w).Encode(a); err != nil {
		tmp.Close()
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
