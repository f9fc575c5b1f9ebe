package detectors

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// initRuntime loads the ONNX Runtime shared library and initializes the
// environment. The runtime can only be initialized once per process, so the
// first caller's library path wins.
func initRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath == "" {
			libPath = sharedLibraryPath()
		}
		if _, err := os.Stat(libPath); err != nil {
			ortErr = errors.Wrapf(err, "ONNX Runtime library not found at %q", libPath)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = errors.Wrap(err, "failed to initialize ONNX Runtime environment")
		}
	})
	return ortErr
}

// sharedLibraryPath returns the platform default location of the ONNX
// Runtime shared library. The ONNXRUNTIME_SHARED_LIBRARY environment
// variable overrides it.
func sharedLibraryPath() string {
	if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}
