//go:build onnx

package cli

import (
	"github.com/lethanhdat/membank/memory"
	"github.com/lethanhdat/membank/memory/embedder/onnx"
)

// newLocalEmbedder loads the ONNX sentence-transformer model as the local
// embedding backend.
func (cfg *config) newLocalEmbedder() (memory.Embedder, error) {
	return onnx.New(onnx.Config{
		ModelPath:     cfg.onnxModel,
		TokenizerPath: cfg.onnxTokenizer,
		LibraryPath:   cfg.onnxLibrary,
		Dimensions:    int(cfg.dimensions),
	})
}
