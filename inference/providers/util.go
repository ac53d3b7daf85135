package providers

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// GetSharedLibPath returns the default path to the onnxruntime shared library for the
// current platform. ONNXRUNTIME_LIB overrides it.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath() string {
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}

var (
	initOnce sync.Once
	initErr  error
)

// Initialize loads the onnxruntime library and prepares the environment. It runs once per
// process; later calls return the first result.
//
// Arguments:
//   - cfg: The provider configuration; LibraryPath overrides GetSharedLibPath.
//
// Returns:
//   - error: An error if the library is missing or the environment cannot be initialized.
func Initialize(cfg Config) error {
	initOnce.Do(func() {
		libPath := cfg.LibraryPath
		if libPath == "" {
			libPath = GetSharedLibPath()
		}
		if _, err := os.Stat(libPath); err != nil {
			initErr = errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return initErr
}
