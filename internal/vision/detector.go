package vision

import (
	"context"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/imaging"
	"github.com/eduard256/imgable-ai/internal/modelcache"
)

// Detector runs the multi-scale face detection model over full images.
type Detector struct {
	models *modelcache.Manager
	cfg    config.FacesConfig
}

func NewDetector(models *modelcache.Manager, cfg config.FacesConfig) *Detector {
	return &Detector{models: models, cfg: cfg}
}

// Detect returns every face in the image above the configured confidence,
// with relative bounding boxes and absolute-pixel landmarks.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	if !d.cfg.Enabled {
		return nil, nil
	}

	bounds := img.Bounds()
	imgW := bounds.Dx()
	imgH := bounds.Dy()
	if imgW == 0 || imgH == 0 {
		return nil, fmt.Errorf("empty image")
	}

	letterboxed, scale := imaging.Letterbox(img, detInputSide)
	data := imaging.ToFloat32CHW(letterboxed, detInputSide, detInputSide,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{128, 128, 128})

	session, err := d.models.Load(ctx, "face_detection")
	if err != nil {
		return nil, fmt.Errorf("loading detection model: %w", err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, detInputSide, detInputSide), data)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer input.Destroy()

	outputs, err := session.Run([]ort.Value{input})
	if err != nil {
		return nil, fmt.Errorf("running detection: %w", err)
	}
	defer destroyAll(outputs)

	raw, err := tensorData(outputs)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(featStrides)*3 {
		return nil, fmt.Errorf("unexpected detection output count %d", len(raw))
	}

	detections := decodeOutputs(raw, d.cfg.MinConfidence)
	return finalizeDetections(detections, scale, imgW, imgH, d.cfg.MinSize, d.cfg.MaxPerPhoto), nil
}

// tensorData copies every output tensor into a plain float32 slice.
func tensorData(outputs []ort.Value) ([][]float32, error) {
	raw := make([][]float32, len(outputs))
	for i, out := range outputs {
		t, ok := out.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %d: unexpected tensor type", i)
		}
		data := t.GetData()
		raw[i] = make([]float32, len(data))
		copy(raw[i], data)
	}
	return raw, nil
}

func destroyAll(outputs []ort.Value) {
	for _, out := range outputs {
		if out != nil {
			out.Destroy()
		}
	}
}
