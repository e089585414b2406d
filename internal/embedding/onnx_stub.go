//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

// ONNXEmbedder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEmbedder struct{}

// NewONNXEmbedder returns a model-unavailable error when built without CGO.
func NewONNXEmbedder(modelPath string, _, _, _ int) (*ONNXEmbedder, error) {
	return nil, ErrModelUnavailable(errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime"), modelPath)
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrModelUnavailable(errors.New("ONNX embedder not built"), "")
}

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrModelUnavailable(errors.New("ONNX embedder not built"), "")
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Version() string { return "onnx:unavailable" }

func (e *ONNXEmbedder) Close() error { return nil }
