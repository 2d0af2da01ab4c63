package domain

import (
	"context"
	"image"
)

// Capability имя опциональной возможности конвейера.
type Capability string

const (
	CapabilityDetector    Capability = "detector"
	CapabilityEmbedder    Capability = "embedder"
	CapabilityOCR         Capability = "ocr"
	CapabilityCaptioner   Capability = "captioner"
	CapabilityVectorIndex Capability = "vector-index"
)

// Detection сырой результат детектора объектов.
type Detection struct {
	Box        BoundingBox
	Class      string
	Confidence float64
}

// Detector локализует объекты на изображении.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Embedder вычисляет векторные представления изображений и текста
// в общем пространстве фиксированной размерности.
type Embedder interface {
	EmbedImage(ctx context.Context, img image.Image) ([]float64, error)
	EmbedText(ctx context.Context, text string) ([]float64, error)
	Dimensions() int
}

// OCR извлекает текст из изображения.
type OCR interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// Caption сгенерированное описание изображения.
// Confidence <= 0 означает, что модель не сообщает свою уверенность.
type Caption struct {
	Text       string
	Confidence float64
}

// Captioner генерирует текстовое описание изображения целиком.
type Captioner interface {
	Caption(ctx context.Context, img image.Image) (Caption, error)
}

// CatalogSource источник записей каталога. Формат и расположение
// хранилища принадлежат реализации; конвейер видит только
// последовательность записей в порядке вставки.
type CatalogSource interface {
	LoadEntries(ctx context.Context) ([]CatalogEntry, error)
}
