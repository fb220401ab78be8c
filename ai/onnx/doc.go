// Package onnx provides a local sentence-embedding provider backed by ONNX Runtime.
//
// Inputs are tokenized with a BERT WordPiece vocabulary to a fixed sequence
// length and run through a single model session. The output tensor name is
// resolved once at Initialize from the names the model declares, and every
// vector keeps the first Dimension() output components.
//
// The ONNX Runtime shared library must be installed. Its path can be set with
// ai.WithRuntimeLibrary; otherwise the platform default search path is used.
package onnx
