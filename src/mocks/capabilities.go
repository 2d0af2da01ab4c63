package mocks

import (
	"context"
	"image"

	"nesventory-vision/src/domain"
)

// MockDetector имитация детектора объектов для тестирования.
type MockDetector struct {
	Detections []domain.Detection
	DetectFn   func(ctx context.Context, img image.Image) ([]domain.Detection, error)
}

func (m *MockDetector) Detect(ctx context.Context, img image.Image) ([]domain.Detection, error) {
	if m.DetectFn != nil {
		return m.DetectFn(ctx, img)
	}
	return m.Detections, nil
}

// MockEmbedder имитация эмбеддера для тестирования.
type MockEmbedder struct {
	Dims         int
	Vector       []float64
	EmbedImageFn func(ctx context.Context, img image.Image) ([]float64, error)
	EmbedTextFn  func(ctx context.Context, text string) ([]float64, error)
}

func (m *MockEmbedder) EmbedImage(ctx context.Context, img image.Image) ([]float64, error) {
	if m.EmbedImageFn != nil {
		return m.EmbedImageFn(ctx, img)
	}
	return m.Vector, nil
}

func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	if m.EmbedTextFn != nil {
		return m.EmbedTextFn(ctx, text)
	}
	return m.Vector, nil
}

func (m *MockEmbedder) Dimensions() int {
	if m.Dims > 0 {
		return m.Dims
	}
	return len(m.Vector)
}

// MockOCR имитация OCR для тестирования.
type MockOCR struct {
	Text          string
	ExtractTextFn func(ctx context.Context, img image.Image) (string, error)
}

func (m *MockOCR) ExtractText(ctx context.Context, img image.Image) (string, error) {
	if m.ExtractTextFn != nil {
		return m.ExtractTextFn(ctx, img)
	}
	return m.Text, nil
}

// MockCaptioner имитация генератора описаний для тестирования.
type MockCaptioner struct {
	Result    domain.Caption
	CaptionFn func(ctx context.Context, img image.Image) (domain.Caption, error)
}

func (m *MockCaptioner) Caption(ctx context.Context, img image.Image) (domain.Caption, error) {
	if m.CaptionFn != nil {
		return m.CaptionFn(ctx, img)
	}
	return m.Result, nil
}

// MockCatalogSource имитация источника записей каталога.
type MockCatalogSource struct {
	Entries       []domain.CatalogEntry
	Loads         int // счётчик обращений
	LoadEntriesFn func(ctx context.Context) ([]domain.CatalogEntry, error)
}

func (m *MockCatalogSource) LoadEntries(ctx context.Context) ([]domain.CatalogEntry, error) {
	m.Loads++
	if m.LoadEntriesFn != nil {
		return m.LoadEntriesFn(ctx)
	}
	return m.Entries, nil
}
