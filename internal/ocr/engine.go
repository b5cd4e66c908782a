package ocr

import (
	"context"
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/eduard256/imgable-ai/internal/imaging"
	"github.com/eduard256/imgable-ai/internal/modelcache"
)

// Line is one recognized text fragment with its confidence.
type Line struct {
	Text       string
	Confidence float64
}

// Engine recognizes text in an image region.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]Line, error)
}

const (
	recInputHeight = 48
	recMaxWidth    = 640
)

// recCharset is the alphabet of the recognition model; class 0 is the CTC
// blank, classes 1..n index into this string.
const recCharset = "0123456789./-:' abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ\"|"

// Recognizer is the default Engine, running the text recognition model
// over the whole region as a single line and decoding the CTC output
// greedily.
type Recognizer struct {
	models *modelcache.Manager
}

func NewRecognizer(models *modelcache.Manager) *Recognizer {
	return &Recognizer{models: models}
}

func (r *Recognizer) Recognize(ctx context.Context, img image.Image) ([]Line, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	// Scale to the fixed input height, preserving aspect ratio.
	width := bounds.Dx() * recInputHeight / bounds.Dy()
	if width < 1 {
		width = 1
	}
	if width > recMaxWidth {
		width = recMaxWidth
	}

	resized := imaging.Resize(img, width, recInputHeight)
	data := imaging.ToFloat32CHW(resized, width, recInputHeight,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})

	session, err := r.models.Load(ctx, "text_recognition")
	if err != nil {
		return nil, fmt.Errorf("loading recognition model: %w", err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, recInputHeight, int64(width)), data)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer input.Destroy()

	outputs, err := session.Run([]ort.Value{input})
	if err != nil {
		return nil, fmt.Errorf("running recognition: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected recognition output type")
	}

	shape := tensor.GetShape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("unexpected recognition output rank %d", len(shape))
	}

	text, confidence := ctcDecode(tensor.GetData(), int(shape[1]), int(shape[2]))
	if text == "" {
		return nil, nil
	}
	return []Line{{Text: text, Confidence: confidence}}, nil
}

// ctcDecode greedily decodes a [T, C] probability sequence: per-step argmax,
// repeats collapsed, blanks (class 0) skipped. Confidence is the mean
// probability of emitted characters.
func ctcDecode(data []float32, steps, classes int) (string, float64) {
	var out []rune
	var confSum float64
	prev := -1

	for t := 0; t < steps; t++ {
		row := data[t*classes : (t+1)*classes]

		best := 0
		for c := 1; c < classes; c++ {
			if row[c] > row[best] {
				best = c
			}
		}

		if best != 0 && best != prev {
			if best-1 < len(recCharset) {
				out = append(out, rune(recCharset[best-1]))
				confSum += softmaxProb(row, best)
			}
		}
		prev = best
	}

	if len(out) == 0 {
		return "", 0
	}
	return string(out), confSum / float64(len(out))
}

// softmaxProb returns the softmax probability of class idx within row.
// Models that already emit probabilities are unaffected in ordering; the
// value only feeds the confidence filter.
func softmaxProb(row []float32, idx int) float64 {
	maxV := row[0]
	for _, v := range row[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - maxV))
	}
	return math.Exp(float64(row[idx]-maxV)) / sum
}
