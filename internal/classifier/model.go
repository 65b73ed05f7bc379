package classifier

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// UnknownLabel is returned when the classifier's argmax falls outside
// the label table.
const UnknownLabel = "Unknown"

// fallbackLabels is used when no label file is available: digits,
// letters, pause.
var fallbackLabels = func() []string {
	labels := make([]string, 0, 37)
	for c := '0'; c <= '9'; c++ {
		labels = append(labels, string(c))
	}
	for c := 'A'; c <= 'Z'; c++ {
		labels = append(labels, string(c))
	}
	return append(labels, "_")
}()

// Model is the keypoint classifier: a small dense network whose
// weights are exported to JSON. Hidden layers use ReLU; the output
// layer is softmaxed to probabilities.
type Model struct {
	layers []denseLayer
	labels []string
}

type denseLayer struct {
	// Weights is [out][in].
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

type modelFile struct {
	Layers []denseLayer `json:"layers"`
}

// LoadModel reads the JSON weights. Missing or malformed weights are
// an error; callers treat it as fatal at startup. The label file is
// optional: a built-in table covers its absence.
func LoadModel(weightsPath, labelsPath string) (*Model, error) {
	data, err := os.ReadFile(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("read model weights: %w", err)
	}
	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("decode model weights: %w", err)
	}
	if len(mf.Layers) == 0 {
		return nil, fmt.Errorf("model %s has no layers", weightsPath)
	}
	for i, l := range mf.Layers {
		if len(l.Weights) == 0 || len(l.Weights) != len(l.Biases) {
			return nil, fmt.Errorf("model layer %d is malformed", i)
		}
	}

	return &Model{
		layers: mf.Layers,
		labels: loadLabels(labelsPath),
	}, nil
}

// loadLabels reads one label per CSV row, stripping the legacy "ASL "
// prefix. Any failure falls back to the built-in table.
func loadLabels(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return fallbackLabels
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil || len(rows) == 0 {
		return fallbackLabels
	}
	labels := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		labels = append(labels, strings.TrimPrefix(row[0], "ASL "))
	}
	if len(labels) == 0 {
		return fallbackLabels
	}
	return labels
}

// Predict runs the forward pass and returns the winning label with its
// softmax probability.
func (m *Model) Predict(features []float64) (string, float64) {
	x := features
	for i, layer := range m.layers {
		x = layer.forward(x)
		if i < len(m.layers)-1 {
			relu(x)
		}
	}
	softmax(x)

	best := 0
	for i := range x {
		if x[i] > x[best] {
			best = i
		}
	}
	if best >= len(m.labels) {
		return UnknownLabel, 0
	}
	return m.labels[best], x[best]
}

func (l denseLayer) forward(in []float64) []float64 {
	out := make([]float64, len(l.Weights))
	for o, row := range l.Weights {
		sum := l.Biases[o]
		for i, w := range row {
			if i < len(in) {
				sum += w * in[i]
			}
		}
		out[o] = sum
	}
	return out
}

func relu(v []float64) {
	for i := range v {
		if v[i] < 0 {
			v[i] = 0
		}
	}
}

func softmax(v []float64) {
	max := math.Inf(-1)
	for _, x := range v {
		if x > max {
			max = x
		}
	}
	sum := 0.0
	for i := range v {
		v[i] = math.Exp(v[i] - max)
		sum += v[i]
	}
	if sum == 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}
