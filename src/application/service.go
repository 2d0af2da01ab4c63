package application

import (
	"context"

	"nesventory-vision/src/domain"
)

// IdentificationService интерфейс сервиса идентификации предметов
// по фотографии.
type IdentificationService interface {
	// Identify возвращает ранжированный список совпадений каталога
	// для загруженного изображения.
	Identify(ctx context.Context, data []byte, contentType string, req domain.IdentifyRequest) (*domain.IdentificationResult, error)

	// IdentifyBest возвращает лучшего кандидата с альтернативами.
	IdentifyBest(ctx context.Context, data []byte, contentType string) (*domain.Identification, error)

	// RebuildCatalogIndex перестраивает каталожный индекс атомарно.
	RebuildCatalogIndex(ctx context.Context) error

	// Capabilities возвращает вердикты по возможностям конвейера.
	Capabilities(ctx context.Context) map[domain.Capability]ProbeStatus
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ IdentificationService = (*Pipeline)(nil)
