package domain

import "time"

// Источники совпадений. Каждое совпадение помечается стратегией,
// которая его нашла.
const (
	MatchSourceVisual = "visual-similarity"
	MatchSourceText   = "text-fallback"
)

// BoundingBox представляет прямоугольную область на изображении
// в пиксельных координатах (x1 < x2, y1 < y2).
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width возвращает ширину области в пикселях.
func (b BoundingBox) Width() int {
	return b.X2 - b.X1
}

// Height возвращает высоту области в пикселях.
func (b BoundingBox) Height() int {
	return b.Y2 - b.Y1
}

// Region представляет область, найденную на изображении этапом детекции.
// Область неизменяема после создания и принадлежит одному запросу.
type Region struct {
	ID         string       `json:"id"`
	Box        *BoundingBox `json:"box,omitempty"` // nil для синтетической области на всё изображение
	Label      string       `json:"label"`
	Class      string       `json:"class,omitempty"`
	Confidence float64      `json:"confidence"`
	// OCRText: nil — OCR не выполнялся; пустая строка — выполнялся, но текст не найден.
	OCRText *string `json:"ocr_text,omitempty"`
}

// CatalogEntry представляет элемент каталога коллекционных предметов.
// Записи загружаются один раз при построении индекса и не изменяются.
type CatalogEntry struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Collection  string    `json:"collection,omitempty" db:"collection"`
	Category    string    `json:"category,omitempty" db:"category"`
	Description string    `json:"description,omitempty" db:"description"`
	Embedding   []float64 `json:"embedding,omitempty" db:"-"` // нормализованный вектор фиксированной размерности, nil если не предвычислен
}

// Match представляет совпадение области изображения с элементом каталога.
type Match struct {
	ItemID   string  `json:"item_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`  // нормализованная релевантность [0, 1]
	Source   string  `json:"source"` // MatchSourceVisual или MatchSourceText
	Reason   string  `json:"reason"`
	RegionID string  `json:"region_id,omitempty"` // область, давшая совпадение
}

// IdentifyRequest параметры запроса идентификации.
type IdentifyRequest struct {
	Limit         int     `json:"limit"`
	MinConfidence float64 `json:"min_confidence"`
	Collection    string  `json:"collection,omitempty"` // фильтр по коллекции, пустая строка — без фильтра
}

// IdentificationResult итог одного запроса идентификации.
// Создаётся один раз на запрос и далее не изменяется.
type IdentificationResult struct {
	Regions    []Region      `json:"regions"`
	Matches    []Match       `json:"matches"` // отсортированы по убыванию релевантности
	Confidence float64       `json:"confidence"`
	Degraded   bool          `json:"degraded"` // хотя бы один этап выполнен по резервному пути
	Duration   time.Duration `json:"duration"`
}

// Identification упрощённый итог для интеграции с инвентарём:
// лучший кандидат плюс альтернативы.
type Identification struct {
	Identified   bool     `json:"identified"`
	Confidence   float64  `json:"confidence"`
	ItemID       string   `json:"item_id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Alternatives []Match  `json:"alternatives,omitempty"`
	Labels       []string `json:"labels,omitempty"` // подписи обнаруженных областей
	Suggestion   string   `json:"suggestion,omitempty"`
}
