package embedding

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Runner executes the encoder for a single sequence and returns the flattened
// [seqLen x HiddenSize] last hidden state.
type Runner interface {
	HiddenSize() int
	Run(ids, mask, typeIDs []int64) ([]float32, error)
	Close() error
}

const (
	inputIDs       = "input_ids"
	inputMask      = "attention_mask"
	inputTypeIDs   = "token_type_ids"
	lastHiddenName = "last_hidden_state"
)

var (
	runtimeOnce    sync.Once
	runtimeInitErr error
)

// initRuntime loads the onnxruntime shared library once per process.
func initRuntime(libraryPath string) error {
	runtimeOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		runtimeInitErr = ort.InitializeEnvironment()
	})
	return runtimeInitErr
}

type onnxRunner struct {
	session    *ort.DynamicAdvancedSession
	inputs     []string
	hiddenSize int
}

func newONNXRunner(modelPath string, opts Options) (*onnxRunner, error) {
	if err := initRuntime(opts.RuntimeLibrary); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model signature: %w", err)
	}

	inputs, err := selectInputs(inputInfo)
	if err != nil {
		return nil, err
	}

	output, hidden, err := selectOutput(outputInfo)
	if err != nil {
		return nil, err
	}

	sessionOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() { _ = sessionOpts.Destroy() }()

	if opts.IntraOpThreads > 0 {
		if err := sessionOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputs, []string{output}, sessionOpts)
	if err != nil {
		return nil, fmt.Errorf("create inference session: %w", err)
	}

	return &onnxRunner{
		session:    session,
		inputs:     inputs,
		hiddenSize: hidden,
	}, nil
}

func selectInputs(info []ort.InputOutputInfo) ([]string, error) {
	present := make(map[string]bool, len(info))
	for _, in := range info {
		present[in.Name] = true
	}
	for _, required := range []string{inputIDs, inputMask} {
		if !present[required] {
			return nil, fmt.Errorf("unsupported model: missing input %q", required)
		}
	}

	names := []string{inputIDs, inputMask}
	if present[inputTypeIDs] {
		names = append(names, inputTypeIDs)
	}
	if len(names) != len(info) {
		return nil, fmt.Errorf("unsupported model: expects %d inputs, only %d are known", len(info), len(names))
	}
	return names, nil
}

func selectOutput(info []ort.InputOutputInfo) (string, int, error) {
	if len(info) == 0 {
		return "", 0, fmt.Errorf("unsupported model: no outputs")
	}

	chosen := info[0]
	for _, out := range info {
		if out.Name == lastHiddenName {
			chosen = out
			break
		}
	}

	dims := chosen.Dimensions
	if len(dims) != 3 || dims[2] <= 0 {
		return "", 0, fmt.Errorf("unsupported model: output %q has shape %v, want [batch, seq, hidden]", chosen.Name, dims)
	}
	return chosen.Name, int(dims[2]), nil
}

func (r *onnxRunner) HiddenSize() int {
	return r.hiddenSize
}

func (r *onnxRunner) Run(ids, mask, typeIDs []int64) ([]float32, error) {
	seqLen := int64(len(ids))
	shape := ort.NewShape(1, seqLen)

	byName := map[string][]int64{
		inputIDs:     ids,
		inputMask:    mask,
		inputTypeIDs: typeIDs,
	}

	values := make([]ort.Value, 0, len(r.inputs))
	defer func() {
		for _, v := range values {
			_ = v.Destroy()
		}
	}()

	for _, name := range r.inputs {
		tensor, err := ort.NewTensor(shape, byName[name])
		if err != nil {
			return nil, fmt.Errorf("build %s tensor: %w", name, err)
		}
		values = append(values, tensor)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seqLen, int64(r.hiddenSize)))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}
	defer func() { _ = out.Destroy() }()

	if err := r.session.Run(values, []ort.Value{out}); err != nil {
		return nil, err
	}

	data := out.GetData()
	hidden := make([]float32, len(data))
	copy(hidden, data)
	return hidden, nil
}

func (r *onnxRunner) Close() error {
	return r.session.Destroy()
}
