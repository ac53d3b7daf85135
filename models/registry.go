// Package models - registry for models.
package models

import (
	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/inference"
)

// NewModel creates a model instance based on the specified model name.
//
// Models that hold native resources (ModelNameONNX) also implement io.Closer; the caller
// should close them when the evaluation is done.
//
// Arguments:
//   - args: Configuration parameters specifying the model type and its settings.
//   - log: The logger handed to models that log.
//
// Returns:
//   - Model: A configured model.
//   - error: An error if the name is unsupported or the model cannot be created.
func NewModel(args NewModelArgs, log logs.Log) (Model, error) {
	switch args.Name {
	case ModelNameONNX:
		m, err := inference.NewONNXModel(args.ONNX, args.Cameras, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ModelNameBackground:
		m, err := NewBackgroundModel(args.GridSize, args.Classes, args.Background)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, common.Configf("unsupported model name: %q", args.Name)
	}
}
