package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	onnxrt "github.com/yalue/onnxruntime_go"
)

func TestCheckContract(t *testing.T) {
	in := onnxrt.InputOutputInfo{
		Name:       "x",
		Dimensions: onnxrt.NewShape(-1, 1, 28, 28),
		DataType:   onnxrt.TensorElementDataTypeFloat,
	}
	out := onnxrt.InputOutputInfo{Name: "scores", Dimensions: onnxrt.NewShape(-1, 11)}

	assert.Empty(t, checkContract([]onnxrt.InputOutputInfo{in}, []onnxrt.InputOutputInfo{out}))

	flat := in
	flat.Dimensions = onnxrt.NewShape(-1, 784)
	problems := checkContract([]onnxrt.InputOutputInfo{flat}, nil)
	assert.Len(t, problems, 2)

	wrongType := in
	wrongType.DataType = onnxrt.TensorElementDataTypeUint8
	assert.Len(t, checkContract([]onnxrt.InputOutputInfo{wrongType}, []onnxrt.InputOutputInfo{out}), 1)

	assert.Len(t, checkContract(nil, []onnxrt.InputOutputInfo{{Dimensions: onnxrt.NewShape(1, 11, 1)}}), 2)
}
