package application

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/sirupsen/logrus"

	"nesventory-vision/src/domain"
	"nesventory-vision/src/infrastructure/imaging"
)

// matchRegion находит совпадения каталога для одной области.
// Сначала пробуется визуальный путь (эмбеддинг области против
// векторного индекса каталога), при его недоступности — резервный
// текстовый поиск по подписи и извлечённому тексту. Оценки обоих
// путей приводятся к общей шкале [0, 1] до слияния. Второй результат
// сообщает, был ли выполнен резервный путь, независимо от того, дал
// ли он совпадения.
func (p *Pipeline) matchRegion(ctx context.Context, img image.Image, region *domain.Region, req domain.IdentifyRequest, log *logrus.Entry) ([]domain.Match, bool) {
	minScore := p.cfg.MinSimilarity
	if req.MinConfidence > minScore {
		minScore = req.MinConfidence
	}

	if matches, ok := p.matchVisual(ctx, img, region, req.Collection, minScore, log); ok {
		return matches, false
	}
	return p.matchText(region, req.Collection, minScore), true
}

// matchVisual визуальный путь. Второй результат false означает, что
// путь недоступен (нет эмбеддера или векторного индекса, либо
// инференс не удался) и следует перейти к текстовому резерву.
func (p *Pipeline) matchVisual(ctx context.Context, img image.Image, region *domain.Region, collection string, minScore float64, log *logrus.Entry) ([]domain.Match, bool) {
	if p.store == nil {
		return nil, false
	}
	if p.embedder == nil || !p.probe.Available(ctx, domain.CapabilityEmbedder) {
		return nil, false
	}
	if !p.probe.Available(ctx, domain.CapabilityVectorIndex) {
		return nil, false
	}

	target := img
	if region.Box != nil {
		crop, err := imaging.Crop(img, *region.Box)
		if err != nil {
			log.WithError(err).WithField("region_id", region.ID).Warn("Не удалось вырезать область для эмбеддинга")
			return nil, false
		}
		target = crop
	}

	vector, err := p.embedder.EmbedImage(ctx, target)
	if err != nil {
		log.WithError(err).WithField("region_id", region.ID).Warn("Эмбеддер недоступен для этой области")
		return nil, false
	}

	hits, err := p.store.SearchVector(vector, p.cfg.TopK, collection)
	if err != nil {
		log.WithError(err).WithField("region_id", region.ID).Warn("Векторный поиск не удался")
		return nil, false
	}

	matches := make([]domain.Match, 0, len(hits))
	for _, hit := range hits {
		// Косинусное сходство [-1, 1] приводится к [0, 1].
		score := (hit.Score + 1) / 2
		if score < minScore {
			continue
		}
		matches = append(matches, domain.Match{
			ItemID:   hit.Entry.ID,
			Name:     hit.Entry.Name,
			Score:    score,
			Source:   domain.MatchSourceVisual,
			Reason:   fmt.Sprintf("визуальное сходство: %.2f", score),
			RegionID: region.ID,
		})
	}
	return matches, true
}

// matchText резервный текстовый поиск по подписи области и
// извлечённому OCR-тексту. Без хранилища каталога совпадений нет.
func (p *Pipeline) matchText(region *domain.Region, collection string, minScore float64) []domain.Match {
	if p.store == nil {
		return nil
	}

	query := region.Label
	if region.OCRText != nil && *region.OCRText != "" {
		query = strings.TrimSpace(query + " " + *region.OCRText)
	}
	if query == "" {
		return nil
	}

	hits := p.store.SearchText(query, p.cfg.TopK, collection)

	matches := make([]domain.Match, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < minScore {
			continue
		}
		matches = append(matches, domain.Match{
			ItemID:   hit.Entry.ID,
			Name:     hit.Entry.Name,
			Score:    hit.Score,
			Source:   domain.MatchSourceText,
			Reason:   fmt.Sprintf("текстовое совпадение по описанию: %.2f", hit.Score),
			RegionID: region.ID,
		})
	}
	return matches
}
