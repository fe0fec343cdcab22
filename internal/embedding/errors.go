package embedding

import (
	"errors"
	"fmt"
)

// ErrEngineClosed is returned by Embed after Close.
var ErrEngineClosed = errors.New("embedding engine closed")

// LoadError reports a missing, corrupt or unsupported model artifact.
type LoadError struct {
	Err  error
	Path string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model artifact %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InferenceError reports a runtime failure or shape mismatch during Embed.
type InferenceError struct {
	Err    error
	Tokens int
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference over %d tokens: %v", e.Tokens, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
