package inference

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Default tensor names of a scikit-learn classifier exported with
// skl2onnx and zipmap disabled.
const (
	DefaultInputName         = "float_input"
	DefaultLabelOutput       = "output_label"
	DefaultProbabilityOutput = "output_probability"
)

// InitONNX loads the onnxruntime shared library. Call once per process
// before any Predictor is created.
func InitONNX(libPath string) error {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnx environment: %w", err)
	}
	return nil
}

func CleanupONNX() {
	ort.DestroyEnvironment()
}

// ModelSpec locates one exported model.
type ModelSpec struct {
	Name string
	Path string
	// FeaturesPath is a text file with one column name per line. When empty
	// DefaultColumns is used.
	FeaturesPath   string
	DefaultColumns []string

	InputName         string
	LabelOutput       string
	ProbabilityOutput string
}

// Predictor runs a binary ONNX classifier over feature matrices. The session
// is read-only after construction and safe for concurrent Predict calls.
type Predictor struct {
	name         string
	session      *ort.DynamicAdvancedSession
	featureOrder []string
}

func NewPredictor(spec ModelSpec) (*Predictor, error) {
	p := &Predictor{name: spec.Name}

	if spec.FeaturesPath != "" {
		order, err := readFeatureOrder(spec.FeaturesPath)
		if err != nil {
			return nil, err
		}
		p.featureOrder = order
	} else {
		p.featureOrder = append([]string(nil), spec.DefaultColumns...)
	}
	if len(p.featureOrder) == 0 {
		return nil, fmt.Errorf("model %s: empty feature order", spec.Name)
	}

	inputNames := []string{orDefault(spec.InputName, DefaultInputName)}
	outputNames := []string{
		orDefault(spec.LabelOutput, DefaultLabelOutput),
		orDefault(spec.ProbabilityOutput, DefaultProbabilityOutput),
	}

	session, err := ort.NewDynamicAdvancedSession(spec.Path, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s model from %s: %w", spec.Name, spec.Path, err)
	}
	p.session = session

	return p, nil
}

func readFeatureOrder(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var order []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			order = append(order, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read feature names %s: %w", path, err)
	}
	return order, nil
}

// Predict classifies every row in one session run.
func (p *Predictor) Predict(rows [][]float32) ([]Prediction, error) {
	n := len(rows)
	if n == 0 {
		return nil, nil
	}
	width := len(p.featureOrder)

	data := make([]float32, 0, n*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, model %s expects %d", i, len(row), p.name, width)
		}
		data = append(data, row...)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	inputTensor, err := ort.NewTensor(ort.NewShape(int64(n), int64(width)), data)
	if err != nil {
		return nil, fmt.Errorf("input tensor creation failed: %w", err)
	}
	defer inputTensor.Destroy()

	labelTensor, err := ort.NewEmptyTensor[int64](ort.NewShape(int64(n)))
	if err != nil {
		return nil, fmt.Errorf("label tensor creation failed: %w", err)
	}
	defer labelTensor.Destroy()

	probTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(n), 2))
	if err != nil {
		return nil, fmt.Errorf("probability tensor creation failed: %w", err)
	}
	defer probTensor.Destroy()

	if err := p.session.Run(
		[]ort.Value{inputTensor},
		[]ort.Value{labelTensor, probTensor},
	); err != nil {
		return nil, fmt.Errorf("%s inference failed: %w", p.name, err)
	}

	labels := labelTensor.GetData()
	probs := probTensor.GetData()

	out := make([]Prediction, n)
	for i := range out {
		out[i] = Prediction{
			Label:       int(labels[i]),
			Probability: clamp01(float64(probs[i*2+1])),
		}
	}
	return out, nil
}

func (p *Predictor) FeatureOrder() []string {
	return p.featureOrder
}

func (p *Predictor) Close() {
	if p.session != nil {
		p.session.Destroy()
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
