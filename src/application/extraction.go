package application

import (
	"context"
	"image"
	"strings"

	"github.com/sirupsen/logrus"

	"nesventory-vision/src/domain"
	"nesventory-vision/src/infrastructure/imaging"
)

// extractText выполняет OCR для одной области. Сбой или отсутствие
// OCR оставляют поле OCRText равным nil ("не выполнялся"), чтобы
// потребители отличали его от пустой строки ("выполнялся, текст не
// найден"). Сбой одной области не влияет на остальные.
func (p *Pipeline) extractText(ctx context.Context, img image.Image, region *domain.Region, log *logrus.Entry) {
	if p.ocr == nil || !p.probe.Available(ctx, domain.CapabilityOCR) {
		return
	}

	target := img
	if region.Box != nil {
		crop, err := imaging.Crop(img, *region.Box)
		if err != nil {
			log.WithError(err).WithField("region_id", region.ID).Warn("Не удалось вырезать область для OCR")
			return
		}
		target = crop
	}

	text, err := p.ocr.ExtractText(ctx, target)
	if err != nil {
		log.WithError(err).WithField("region_id", region.ID).Warn("OCR недоступен для этой области")
		return
	}

	trimmed := strings.TrimSpace(text)
	region.OCRText = &trimmed
}
