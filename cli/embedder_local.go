//go:build !onnx

package cli

import (
	"github.com/lethanhdat/membank/memory"
	"github.com/lethanhdat/membank/memory/embedder/mock"
)

// newLocalEmbedder returns the deterministic hash embedder. Builds with the
// onnx tag replace it with the real local model.
func (cfg *config) newLocalEmbedder() (memory.Embedder, error) {
	return mock.New(), nil
}
