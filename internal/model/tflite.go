package model

import (
	"fmt"

	"github.com/tphakala/go-tflite"

	"github.com/Brownie44l1/anidex/internal/logging"
)

type tfliteEngine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	inputLen    int
	outputLen   int
}

func newTFLiteEngine(modelPath string, threads int) (*tfliteEngine, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model %s", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(max(1, threads))
	options.SetErrorReporter(func(msg string, _ any) {
		logging.ForService("model").Error("TFLite error", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	input := interpreter.GetInputTensor(0)
	output := interpreter.GetOutputTensor(0)
	if input == nil || output == nil {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("cannot get model tensors")
	}

	return &tfliteEngine{
		model:       model,
		options:     options,
		interpreter: interpreter,
		inputLen:    len(input.Float32s()),
		outputLen:   output.Dim(output.NumDims() - 1),
	}, nil
}

func (e *tfliteEngine) Run(input []float32) ([]float32, error) {
	inputTensor := e.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	copy(inputTensor.Float32s(), input)

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	outputTensor := e.interpreter.GetOutputTensor(0)
	out := make([]float32, e.outputLen)
	copy(out, outputTensor.Float32s())
	return out, nil
}

func (e *tfliteEngine) InputLen() int  { return e.inputLen }
func (e *tfliteEngine) OutputLen() int { return e.outputLen }

func (e *tfliteEngine) Close() error {
	e.interpreter.Delete()
	e.options.Delete()
	e.model.Delete()
	return nil
}
