package frontend

import (
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/crimson-sun/timbre/internal/tensor"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// Encoder runs an ONNX acoustic encoder that maps a (1, T, F) block of
// feature frames to a (1, C, T') frame-level representation.
type Encoder struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	featDim    int64
	outDim     int64
}

// NewEncoder loads the ONNX encoder and creates an inference session. The
// model must take a single rank-3 float input (batch, time, feat) and
// produce a single rank-3 output (batch, channel, time).
func NewEncoder(modelPath string) (*Encoder, error) {
	// The ONNX Runtime shared library ships alongside the model files.
	modelDir := filepath.Dir(modelPath)
	libPath := filepath.Join(modelDir, "libonnxruntime.so")

	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected a single model input, got %d", len(inputs))
	}
	if len(inputs[0].Dimensions) != 3 {
		return nil, fmt.Errorf("onnx: expected 3D input tensor, got %v", inputs[0].Dimensions)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	if len(outputs[0].Dimensions) != 3 {
		return nil, fmt.Errorf("onnx: expected 3D output tensor, got %v", outputs[0].Dimensions)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &Encoder{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		featDim:    inputs[0].Dimensions[2],
		outDim:     outputs[0].Dimensions[1],
	}, nil
}

func (e *Encoder) OutChannels() int { return int(e.outDim) }

// Extract runs the encoder over one utterance's frames.
func (e *Encoder) Extract(frames [][]float32) (*tensor.Tensor, error) {
	t := len(frames)
	if t == 0 {
		return nil, fmt.Errorf("onnx: utterance has no frames")
	}
	feat := int(e.featDim)
	flat := make([]float32, t*feat)
	for k, frame := range frames {
		if len(frame) != feat {
			return nil, fmt.Errorf("onnx: frame %d has width %d, model wants %d", k, len(frame), feat)
		}
		copy(flat[k*feat:], frame)
	}

	tIn, err := ort.NewTensor(ort.NewShape(1, int64(t), e.featDim), flat)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer tIn.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{tIn}, outputs); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}
	tOut := outputs[0].(*ort.Tensor[float32])
	defer tOut.Destroy()

	shape := tOut.GetShape()
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
	}

	// Copy data out before the tensor is destroyed.
	src := tOut.GetData()
	data := make([]float32, len(src))
	copy(data, src)

	return tensor.FromSlice(data, 1, int(shape[1]), int(shape[2]))
}

// Close releases the ONNX session resources.
func (e *Encoder) Close() error {
	return e.session.Destroy()
}
