package features

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/reclaim/internal/config"
	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/observability"
)

// Extractor derives the full descriptor bundle from photo pixel data.
// The hash, colour, visual and shape signals are computed in-process;
// embedding and OCR go through ONNX sessions. Every signal may fail
// independently: a failed signal is logged and left absent, it never
// fails the extraction as a whole.
type Extractor struct {
	embedder   *Embedder
	recognizer *TextRecognizer
}

// NewExtractor loads the ONNX models. A model that fails to load
// disables its signal rather than failing construction; the remaining
// descriptors still work.
func NewExtractor(cfg config.FeaturesConfig) (*Extractor, error) {
	embPath := filepath.Join(cfg.ModelsDir, "image_dna.onnx")
	ocrPath := filepath.Join(cfg.ModelsDir, "text_rec.onnx")

	ex := &Extractor{}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		slog.Warn("embedding model unavailable, signal disabled", "error", err)
	} else {
		ex.embedder = emb
	}

	slog.Info("loading text recognition model", "path", ocrPath)
	rec, err := NewTextRecognizer(ocrPath)
	if err != nil {
		slog.Warn("text recognition model unavailable, signal disabled", "error", err)
	} else {
		ex.recognizer = rec
	}

	return ex, nil
}

// Extract computes a FeatureSet from photo bytes. Extraction is a pure
// derivation: running it twice on the same bytes yields the same set,
// so re-extraction safely overwrites previously stored values.
func (e *Extractor) Extract(data []byte) (*models.FeatureSet, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}

	fs := &models.FeatureSet{ColorBucket: -1}

	start := time.Now()
	fs.PHash = PerceptualHash(img)
	avg := AverageColor(img)
	fs.AvgColor = &avg
	fs.ColorBucket = ColorBucket(avg)
	fs.LumaHist = LumaHistogram(img)
	fs.Shape = ShapeDescriptor(img)
	observability.PipelineDuration.WithLabelValues("descriptors").Observe(time.Since(start).Seconds())

	e.extractEmbedding(img, fs)
	e.extractText(img, fs)

	return fs, nil
}

func (e *Extractor) extractEmbedding(img image.Image, fs *models.FeatureSet) {
	if e.embedder == nil {
		return
	}
	start := time.Now()
	input := imageToFloat32CHW(img, e.embedder.inputW, e.embedder.inputH,
		[3]float32{123.675, 116.28, 103.53}, [3]float32{58.395, 57.12, 57.375})
	emb, err := e.embedder.Extract(input)
	if err != nil {
		slog.Warn("embedding extraction failed, signal absent", "error", err)
		return
	}
	fs.Embedding = emb
	observability.PipelineDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
}

func (e *Extractor) extractText(img image.Image, fs *models.FeatureSet) {
	if e.recognizer == nil {
		return
	}
	start := time.Now()
	input := imageToFloat32CHW(img, e.recognizer.inputW, e.recognizer.inputH,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
	text, err := e.recognizer.Recognize(input)
	if err != nil {
		slog.Warn("text recognition failed, signal absent", "error", err)
		return
	}
	fs.OCRTokens = NormalizeTokens(text)
	fs.Identifiers = ExtractIdentifiers(fs.OCRTokens)
	observability.PipelineDuration.WithLabelValues("ocr").Observe(time.Since(start).Seconds())
}

// Close releases the ONNX sessions.
func (e *Extractor) Close() {
	if e.embedder != nil {
		e.embedder.Close()
	}
	if e.recognizer != nil {
		e.recognizer.Close()
	}
}
