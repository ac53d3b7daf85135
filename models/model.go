// Package models - The BEV model contract and the registry of implementations.
package models

import (
	"context"

	"github.com/nvr-ai/go-bev/inference"
	"gorgonia.org/tensor"
)

// Model produces BEV predictions from stacked camera images. Each entry point takes one
// (B, 3, H, W) float32 tensor per camera, in camera order.
type Model interface {
	// InferLane returns road-map scores shaped (B, 1, G, G), or (B, 2, G, G) for
	// models scored with the arg-max path.
	InferLane(ctx context.Context, cameras []*tensor.Dense) (*tensor.Dense, error)
	// InferBoxes returns per-cell class scores shaped (B, K, G, G).
	InferBoxes(ctx context.Context, cameras []*tensor.Dense) (*tensor.Dense, error)
}

// Name is the unique identifier of a model implementation.
type Name string

const (
	// ModelNameONNX runs exported lane and box graphs with onnxruntime.
	ModelNameONNX Name = "onnx"
	// ModelNameBackground predicts no road and background everywhere.
	ModelNameBackground Name = "background"
)

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name Name `json:"name" yaml:"name"`
	// Cameras is the number of camera tensors per call.
	Cameras int `json:"cameras" yaml:"cameras"`
	// GridSize is the output grid size used by the background model.
	GridSize int `json:"grid_size" yaml:"grid_size"`
	// Classes and Background shape the background model's box output.
	Classes    int `json:"classes" yaml:"classes"`
	Background int `json:"background" yaml:"background"`
	// ONNX configures ModelNameONNX.
	ONNX inference.Config `json:"onnx" yaml:"onnx"`
}
