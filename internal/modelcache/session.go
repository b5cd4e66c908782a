package modelcache

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Once

// initRuntime initializes the ONNX Runtime environment once per process.
// ONNXRUNTIME_LIB points at the shared library when it is not on the
// default search path.
func initRuntime() error {
	var err error
	ortInit.Do(func() {
		if lib := os.Getenv("ONNXRUNTIME_LIB"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		err = ort.InitializeEnvironment()
	})
	if err != nil {
		return fmt.Errorf("initializing onnxruntime: %w", err)
	}
	return nil
}

// Session wraps a dynamic ONNX session together with its discovered
// input/output names. Sessions are safe for concurrent Run calls.
type Session struct {
	sess        *ort.DynamicAdvancedSession
	InputNames  []string
	OutputNames []string
}

// newSession discovers the model's tensor names and builds a session with
// the configured thread counts.
func newSession(path string, threads int) (*Session, error) {
	if err := initRuntime(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("inspecting model %s: %w", path, err)
	}

	inputNames := make([]string, len(inputs))
	for i, in := range inputs {
		inputNames[i] = in.Name
	}
	outputNames := make([]string, len(outputs))
	for i, out := range outputs {
		outputNames[i] = out.Name
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer opts.Destroy()

	if threads > 0 {
		if err := opts.SetIntraOpNumThreads(threads); err != nil {
			return nil, fmt.Errorf("setting intra-op threads: %w", err)
		}
		if err := opts.SetInterOpNumThreads(1); err != nil {
			return nil, fmt.Errorf("setting inter-op threads: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(path, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("creating session for %s: %w", path, err)
	}

	return &Session{
		sess:        sess,
		InputNames:  inputNames,
		OutputNames: outputNames,
	}, nil
}

// Run executes the model over the given inputs. The returned outputs are
// allocated by the runtime; the caller must Destroy each of them.
func (s *Session) Run(inputs []ort.Value) ([]ort.Value, error) {
	outputs := make([]ort.Value, len(s.OutputNames))
	if err := s.sess.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}
	return outputs, nil
}

// Destroy releases the underlying ONNX session.
func (s *Session) Destroy() {
	if s.sess != nil {
		s.sess.Destroy()
		s.sess = nil
	}
}
