package ocr

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/logger"
)

// Result carries whatever the OCR pass extracted. Text stays empty in auto
// mode, where only the date matters.
type Result struct {
	Text string
	Date *time.Time
}

// Processor extracts date stamps (and optionally full text) from photos.
type Processor struct {
	engine Engine
	cfg    config.OCRConfig
	log    *logger.Logger
}

func NewProcessor(engine Engine, cfg config.OCRConfig, log *logger.Logger) *Processor {
	return &Processor{engine: engine, cfg: cfg, log: log}
}

// Process runs OCR according to the configured mode: "auto" scans a corner
// mosaic and returns only the date, "full" scans the whole image and also
// returns the combined text, "off" returns an empty result.
func (p *Processor) Process(ctx context.Context, img image.Image) (Result, error) {
	if !p.cfg.Enabled || p.cfg.Mode == "off" {
		return Result{}, nil
	}

	var region image.Image = img
	if p.cfg.Mode == "auto" {
		region = CornerMosaic(img)
	}

	lines, err := p.engine.Recognize(ctx, region)
	if err != nil {
		// OCR is best-effort; a failed pass yields an empty result.
		p.log.WithError(err).Warn("ocr pass failed")
		return Result{}, nil
	}

	var texts []string
	for _, line := range lines {
		if line.Confidence >= p.cfg.MinConfidence {
			texts = append(texts, line.Text)
		}
	}
	if len(texts) == 0 {
		return Result{}, nil
	}

	var date *time.Time
	for _, text := range texts {
		if d, ok := ParseDate(text); ok {
			date = &d
			break
		}
	}

	combined := strings.Join(texts, " ")
	if date == nil {
		if d, ok := ParseDate(combined); ok {
			date = &d
		}
	}

	if p.cfg.Mode == "auto" {
		return Result{Date: date}, nil
	}
	return Result{Text: combined, Date: date}, nil
}
