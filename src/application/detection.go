package application

import (
	"context"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nesventory-vision/src/domain"
	"nesventory-vision/src/infrastructure/imaging"
)

// detectionStrategy одна стратегия получения областей из изображения.
// Стратегии пробуются по порядку приоритета, пока одна не даст
// результат или все не будут исчерпаны.
type detectionStrategy interface {
	Capability() domain.Capability
	Detect(ctx context.Context, img image.Image) ([]domain.Region, error)
}

// detectorStrategy детекция объектов локализатором с фильтром по
// минимальной уверенности.
type detectorStrategy struct {
	detector      domain.Detector
	minConfidence float64
}

func (s *detectorStrategy) Capability() domain.Capability {
	return domain.CapabilityDetector
}

func (s *detectorStrategy) Detect(ctx context.Context, img image.Image) ([]domain.Region, error) {
	detections, err := s.detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	regions := make([]domain.Region, 0, len(detections))
	for _, d := range detections {
		if d.Confidence < s.minConfidence {
			continue
		}
		// Вырожденные рамки детектора отбрасываем.
		if d.Box.X1 >= d.Box.X2 || d.Box.Y1 >= d.Box.Y2 {
			continue
		}
		// Выступающие за край рамки обрезаются по границам изображения;
		// оставшиеся целиком снаружи отбрасываются.
		r, ok := imaging.ClampBox(d.Box, bounds)
		if !ok {
			continue
		}
		box := domain.BoundingBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
		regions = append(regions, domain.Region{
			ID:         uuid.NewString(),
			Box:        &box,
			Class:      d.Class,
			Label:      fmt.Sprintf("%s в области (%d, %d)", d.Class, box.X1-bounds.Min.X, box.Y1-bounds.Min.Y),
			Confidence: d.Confidence,
		})
	}
	return regions, nil
}

// captionStrategy резервная стратегия: одна синтетическая область на
// всё изображение с подписью из генератора описаний.
type captionStrategy struct {
	captioner          domain.Captioner
	fallbackConfidence float64
}

func (s *captionStrategy) Capability() domain.Capability {
	return domain.CapabilityCaptioner
}

func (s *captionStrategy) Detect(ctx context.Context, img image.Image) ([]domain.Region, error) {
	caption, err := s.captioner.Caption(ctx, img)
	if err != nil {
		return nil, err
	}
	if caption.Text == "" {
		return nil, nil
	}

	confidence := caption.Confidence
	if confidence <= 0 {
		confidence = s.fallbackConfidence
	}

	return []domain.Region{{
		ID:         uuid.NewString(),
		Box:        nil,
		Label:      caption.Text,
		Confidence: confidence,
	}}, nil
}

// detectRegions прогоняет стратегии детекции по порядку приоритета.
// Сбой стратегии на конкретном изображении означает недоступность
// возможности для этого запроса, а не отказ всего конвейера.
// Возвращает области и признак деградации (результат получен не
// основной стратегией либо не получен вовсе).
func (p *Pipeline) detectRegions(ctx context.Context, img image.Image, log *logrus.Entry) ([]domain.Region, bool) {
	degraded := false
	for i, strategy := range p.detection {
		if !p.probe.Available(ctx, strategy.Capability()) {
			degraded = true
			continue
		}

		regions, err := strategy.Detect(ctx, img)
		if err != nil {
			log.WithError(err).WithField("capability", string(strategy.Capability())).
				Warn("Возможность недоступна для этого запроса, пробуем следующую стратегию")
			degraded = true
			continue
		}
		if len(regions) == 0 {
			// Основная стратегия ничего не нашла — даём шанс резервной.
			degraded = degraded || i+1 < len(p.detection)
			continue
		}

		return regions, degraded || i > 0
	}

	// Ни одной области — допустимый исход, а не ошибка.
	return nil, true
}
