package application

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"nesventory-vision/src/domain"
	"nesventory-vision/src/infrastructure/catalog"
	"nesventory-vision/src/infrastructure/imaging"
)

// Tunables настраиваемые параметры конвейера. Значения по умолчанию
// подставляются в NewPipeline.
type Tunables struct {
	MinDetectionConfidence float64 // порог уверенности детектора
	MinSimilarity          float64 // порог нормализованной релевантности совпадения
	TopK                   int     // сколько соседей запрашивать на область
	CaptionConfidence      float64 // уверенность синтетической области, если captioner её не сообщает
	DefaultLimit           int     // предел совпадений, если запрос его не задал
}

// Options зависимости конвейера. Любая возможность может быть nil:
// её отсутствие — нормальное состояние, включающее резервный путь.
type Options struct {
	Detector  domain.Detector
	Embedder  domain.Embedder
	OCR       domain.OCR
	Captioner domain.Captioner
	Store     *catalog.Store
	Log       *logrus.Logger
	Tunables  Tunables
}

// pinger необязательная проверка живости возможности.
type pinger interface {
	Ping(ctx context.Context) error
}

// Pipeline оркестратор конвейера идентификации: последовательность
// этапов детекции, извлечения текста, визуального сопоставления и
// слияния, с деревом резервных путей по вердиктам проверки
// возможностей.
type Pipeline struct {
	cfg       Tunables
	probe     *CapabilityProbe
	detection []detectionStrategy
	embedder  domain.Embedder
	ocr       domain.OCR
	store     *catalog.Store
	log       *logrus.Logger
}

// NewPipeline собирает конвейер и регистрирует проверки возможностей.
func NewPipeline(opts Options) *Pipeline {
	cfg := opts.Tunables
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CaptionConfidence <= 0 {
		cfg.CaptionConfidence = 0.85
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	p := &Pipeline{
		cfg:      cfg,
		probe:    NewCapabilityProbe(log),
		embedder: opts.Embedder,
		ocr:      opts.OCR,
		store:    opts.Store,
		log:      log,
	}

	// Стратегии детекции в порядке приоритета.
	if opts.Detector != nil {
		p.detection = append(p.detection, &detectorStrategy{
			detector:      opts.Detector,
			minConfidence: cfg.MinDetectionConfidence,
		})
	}
	if opts.Captioner != nil {
		p.detection = append(p.detection, &captionStrategy{
			captioner:          opts.Captioner,
			fallbackConfidence: cfg.CaptionConfidence,
		})
	}

	p.probe.Register(domain.CapabilityDetector, handleCheck(opts.Detector))
	p.probe.Register(domain.CapabilityEmbedder, handleCheck(opts.Embedder))
	p.probe.Register(domain.CapabilityOCR, handleCheck(opts.OCR))
	p.probe.Register(domain.CapabilityCaptioner, handleCheck(opts.Captioner))
	p.probe.Register(domain.CapabilityVectorIndex, func(ctx context.Context) error {
		if p.store == nil {
			return errors.New("хранилище каталога не сконфигурировано")
		}
		if err := p.store.Initialize(ctx); err != nil {
			return err
		}
		if !p.store.HasVectorIndex() {
			return errors.New("в каталоге нет предвычисленных векторов")
		}
		return nil
	})

	return p
}

// handleCheck проверка возможности по её обработчику: nil означает
// «не сконфигурирована», обработчик с Ping дополнительно проверяется
// на живость.
func handleCheck(handle any) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if isNilHandle(handle) {
			return errors.New("возможность не сконфигурирована")
		}
		if p, ok := handle.(pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	}
}

// isNilHandle отлавливает и нетипизированный, и типизированный nil
// (nil *T внутри интерфейсного значения).
func isNilHandle(handle any) bool {
	if handle == nil {
		return true
	}
	v := reflect.ValueOf(handle)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Identify выполняет полный цикл идентификации: валидация и
// декодирование изображения, детекция областей, параллельные
// извлечение текста и сопоставление по областям, слияние и
// ранжирование. Недоступность возможности переключает резервный
// путь и никогда не роняет запрос целиком.
func (p *Pipeline) Identify(ctx context.Context, data []byte, contentType string, req domain.IdentifyRequest) (*domain.IdentificationResult, error) {
	start := time.Now()
	log := p.log.WithField("request_id", uuid.NewString())

	// Валидация до любого обращения к моделям.
	img, format, err := imaging.Decode(data, contentType)
	if err != nil {
		return nil, err
	}
	log = log.WithField("format", format)

	// Сбой построения индекса не роняет запрос: детекция всё ещё
	// может сообщить области, совпадений просто не будет.
	if p.store != nil {
		if err := p.store.Initialize(ctx); err != nil {
			log.WithError(err).Error("Индекс каталога недоступен, сопоставление пропущено")
		}
	}

	regions, degraded := p.detectRegions(ctx, img, log)

	// Извлечение текста и сопоставление независимы между областями
	// и выполняются параллельно. Слияние ждёт завершения всех.
	perRegion := make([][]domain.Match, len(regions))
	fellBack := make([]bool, len(regions))
	g, gctx := errgroup.WithContext(ctx)
	for i := range regions {
		if ctx.Err() != nil {
			// Отмена запроса: новые области не запускаем.
			break
		}
		i := i
		g.Go(func() error {
			region := &regions[i]
			p.extractText(gctx, img, region, log)
			perRegion[i], fellBack[i] = p.matchRegion(gctx, img, region, req, log)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, domain.NewError(domain.ErrProcessing, "запрос отменён", err)
	}

	var all []domain.Match
	for _, matches := range perRegion {
		all = append(all, matches...)
	}
	for _, fb := range fellBack {
		if fb {
			degraded = true
			break
		}
	}

	// Областей нет, но эмбеддер и индекс есть: сопоставляем всё
	// изображение как одну виртуальную область.
	if len(regions) == 0 {
		virtual := domain.Region{}
		matches, fb := p.matchRegion(ctx, img, &virtual, req, log)
		all = append(all, matches...)
		degraded = degraded || fb
	}

	limit := req.Limit
	if limit <= 0 {
		limit = p.cfg.DefaultLimit
	}

	merged := mergeMatches(all, limit)

	result := &domain.IdentificationResult{
		Regions:    regions,
		Matches:    merged,
		Confidence: overallConfidence(merged),
		Degraded:   degraded,
		Duration:   time.Since(start),
	}

	log.WithFields(logrus.Fields{
		"regions":    len(result.Regions),
		"matches":    len(result.Matches),
		"confidence": result.Confidence,
		"degraded":   result.Degraded,
		"duration":   result.Duration,
	}).Info("Идентификация завершена")

	return result, nil
}

// IdentifyBest упрощённая идентификация для интеграции с инвентарём:
// лучший кандидат плюс альтернативы.
func (p *Pipeline) IdentifyBest(ctx context.Context, data []byte, contentType string) (*domain.Identification, error) {
	result, err := p.Identify(ctx, data, contentType, domain.IdentifyRequest{
		Limit:         5,
		MinConfidence: 0.3,
	})
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(result.Regions))
	for _, region := range result.Regions {
		labels = append(labels, region.Label)
	}

	if len(result.Matches) == 0 {
		return &domain.Identification{
			Identified: false,
			Labels:     labels,
			Suggestion: "Не удалось определить подходящий предмет Department 56 по изображению.",
		}, nil
	}

	best := result.Matches[0]
	return &domain.Identification{
		Identified:   true,
		Confidence:   best.Score,
		ItemID:       best.ItemID,
		Name:         best.Name,
		Alternatives: result.Matches[1:],
		Labels:       labels,
	}, nil
}

// RebuildCatalogIndex перестраивает каталожный индекс атомарно:
// читатели никогда не видят частично построенный индекс. Вердикт по
// векторному индексу сбрасывается, так как перестроение могло
// добавить или убрать векторы.
func (p *Pipeline) RebuildCatalogIndex(ctx context.Context) error {
	if p.store == nil {
		return domain.Errorf(domain.ErrBuild, "хранилище каталога не сконфигурировано")
	}
	if err := p.store.Rebuild(ctx); err != nil {
		return err
	}
	p.probe.Invalidate(domain.CapabilityVectorIndex)
	return nil
}

// Capabilities возвращает вердикты по всем возможностям конвейера.
func (p *Pipeline) Capabilities(ctx context.Context) map[domain.Capability]ProbeStatus {
	return p.probe.Report(ctx)
}
