package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Once
var ortInitErr error

type onnxEngine struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputLen     int
	outputLen    int
}

type onnxOptions struct {
	modelPath     string
	sharedLibrary string
	inputName     string
	outputName    string
	inputShape    []int64
	outputShape   []int64
	threads       int
}

func initONNX(sharedLibrary string) error {
	ortInit.Do(func() {
		if sharedLibrary != "" {
			ort.SetSharedLibraryPath(sharedLibrary)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortInitErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	})
	return ortInitErr
}

func newONNXEngine(opts onnxOptions) (*onnxEngine, error) {
	if err := initONNX(opts.sharedLibrary); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(opts.inputShape...)
	outputShape := ort.NewShape(opts.outputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	var sessionOptions *ort.SessionOptions
	if opts.threads > 0 {
		sessionOptions, err = ort.NewSessionOptions()
		if err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("failed to create session options: %w", err)
		}
		defer sessionOptions.Destroy()
		if err := sessionOptions.SetIntraOpNumThreads(opts.threads); err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := ort.NewAdvancedSession(opts.modelPath,
		[]string{opts.inputName}, []string{opts.outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		sessionOptions)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxEngine{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputLen:     int(inputShape.FlattenedSize()),
		outputLen:    int(outputShape.FlattenedSize()),
	}, nil
}

func (e *onnxEngine) Run(input []float32) ([]float32, error) {
	copy(e.inputTensor.GetData(), input)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, e.outputLen)
	copy(out, e.outputTensor.GetData())
	return out, nil
}

func (e *onnxEngine) InputLen() int  { return e.inputLen }
func (e *onnxEngine) OutputLen() int { return e.outputLen }

func (e *onnxEngine) Close() error {
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// ShutdownRuntime releases the process-wide ONNX environment.
func ShutdownRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
