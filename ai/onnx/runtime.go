package onnx

import (
	"fmt"
	"strings"
	"sync"

	"github.com/poiesic/phrasebook/ai"
	ort "github.com/yalue/onnxruntime_go"
)

// runtime opens inference sessions for a model file.
type runtime interface {
	// Describe returns the input and output tensor names the model declares.
	Describe(modelPath string) (inputs, outputs []string, err error)
	// Open creates a session reading a single named output.
	Open(modelPath string, inputs []string, output string) (session, error)
	// Release frees process-wide runtime state acquired by Describe or Open.
	Release() error
}

// session runs one encoding through the model and returns the flattened output.
type session interface {
	Run(enc *ai.Encoding) ([]float32, error)
	Destroy() error
}

var (
	envMu   sync.Mutex
	envRefs int
)

// acquireEnvironment initializes the shared ONNX Runtime environment once per process.
func acquireEnvironment(library string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

// ortRuntime is the onnxruntime_go backed runtime.
type ortRuntime struct {
	library  string
	acquired bool
}

func (r *ortRuntime) acquire() error {
	if r.acquired {
		return nil
	}
	if err := acquireEnvironment(r.library); err != nil {
		return err
	}
	r.acquired = true
	return nil
}

func (r *ortRuntime) Describe(modelPath string) ([]string, []string, error) {
	if err := r.acquire(); err != nil {
		return nil, nil, err
	}
	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read model info: %w", err)
	}
	inputs := make([]string, len(inputInfo))
	for i, info := range inputInfo {
		inputs[i] = info.Name
	}
	outputs := make([]string, len(outputInfo))
	for i, info := range outputInfo {
		outputs[i] = info.Name
	}
	return inputs, outputs, nil
}

func (r *ortRuntime) Open(modelPath string, inputs []string, output string) (session, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	s, err := ort.NewDynamicAdvancedSession(modelPath, inputs, []string{output}, nil)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &ortSession{session: s, inputs: inputs}, nil
}

func (r *ortRuntime) Release() error {
	if !r.acquired {
		return nil
	}
	r.acquired = false
	return releaseEnvironment()
}

type ortSession struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
}

func (s *ortSession) Run(enc *ai.Encoding) ([]float32, error) {
	shape := ort.NewShape(1, int64(enc.Len()))

	inputs := make([]ort.Value, 0, len(s.inputs))
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, name := range s.inputs {
		t, err := ort.NewTensor(shape, inputFor(name, enc))
		if err != nil {
			return nil, fmt.Errorf("create input tensor %s: %w", name, err)
		}
		inputs = append(inputs, t)
	}

	outputs := []ort.Value{nil}
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, err
	}
	defer outputs[0].Destroy()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("model output is not a float32 tensor")
	}
	data := t.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func (s *ortSession) Destroy() error {
	return s.session.Destroy()
}

// inputFor maps a declared input name to the encoding column it expects.
func inputFor(name string, enc *ai.Encoding) []int64 {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "mask"):
		return enc.AttentionMask
	case strings.Contains(lower, "type"):
		return enc.TypeIDs
	default:
		return enc.IDs
	}
}
