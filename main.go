package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"nesventory-vision/src/application"
	"nesventory-vision/src/domain"
	"nesventory-vision/src/infrastructure/ai"
	"nesventory-vision/src/infrastructure/catalog"
)

func main() {
	// Определяем флаги командной строки
	configPath := flag.String("config", "config/config.yaml", "Путь к файлу конфигурации")
	dbPath := flag.String("db", "./catalog.db", "Путь к файлу базы каталога")
	action := flag.String("action", "", "Действие: identify, rebuild, probe, demo")
	imagePath := flag.String("image", "", "Путь к изображению (для действия identify)")
	limit := flag.Int("limit", 10, "Максимальное число совпадений")
	collection := flag.String("collection", "", "Фильтр по коллекции")

	flag.Parse()

	config, err := ai.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(config.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	source, err := catalog.NewSQLiteCatalogSource(*dbPath)
	if err != nil {
		log.Fatalf("Ошибка инициализации источника каталога: %v", err)
	}
	defer source.Close()

	store := catalog.New(source, catalog.Options{
		Backend: config.Pipeline.Backend,
		Log:     logger,
	})

	client := ai.NewInferenceClientFromConfig(config)
	opts := application.Options{
		Store: store,
		Log:   logger,
		Tunables: application.Tunables{
			MinDetectionConfidence: config.Pipeline.MinDetectionConfidence,
			MinSimilarity:          config.Pipeline.MinSimilarity,
			TopK:                   config.Pipeline.TopK,
			CaptionConfidence:      config.Pipeline.CaptionConfidence,
			DefaultLimit:           config.Pipeline.DefaultLimit,
		},
	}

	// Возможности подключаются по конфигурации; отключённая
	// возможность просто включает резервный путь.
	if config.Capabilities.Detector {
		opts.Detector = client
	}
	if config.Capabilities.Embedder {
		opts.Embedder = client
	}
	if config.Capabilities.OCR {
		opts.OCR = client
	}
	if config.Capabilities.Captioner {
		opts.Captioner = client
	}

	pipeline := application.NewPipeline(opts)
	ctx := context.Background()

	switch *action {
	case "identify":
		if *imagePath == "" {
			log.Fatal("Для действия 'identify' требуется указать путь к изображению (-image)")
		}
		if err := handleIdentify(ctx, pipeline, *imagePath, *limit, *collection); err != nil {
			log.Fatalf("Ошибка идентификации: %v", err)
		}
	case "rebuild":
		if err := pipeline.RebuildCatalogIndex(ctx); err != nil {
			log.Fatalf("Ошибка перестроения индекса: %v", err)
		}
		fmt.Println("Индекс каталога успешно перестроен!")
	case "probe":
		handleProbe(ctx, pipeline)
	case "demo":
		if err := runDemo(ctx, pipeline, source); err != nil {
			log.Fatalf("Ошибка демонстрации: %v", err)
		}
	default:
		fmt.Println("Сервис идентификации предметов по фотографии. Используйте флаги:")
		fmt.Println("  -action=identify -image=path/to/photo.jpg   # Идентифицировать предмет")
		fmt.Println("  -action=rebuild                             # Перестроить индекс каталога")
		fmt.Println("  -action=probe                               # Проверить доступность возможностей")
		fmt.Println("  -action=demo                                # Запустить демо-сессию")
	}
}

// handleIdentify идентифицирует предмет по файлу изображения.
func handleIdentify(ctx context.Context, pipeline *application.Pipeline, imagePath string, limit int, collection string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("ошибка чтения изображения: %w", err)
	}

	contentType := http.DetectContentType(data)
	fmt.Printf("Идентифицируем изображение: %s (%s)...\n", imagePath, contentType)

	result, err := pipeline.Identify(ctx, data, contentType, domain.IdentifyRequest{
		Limit:      limit,
		Collection: collection,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Областей найдено: %d, совпадений: %d, уверенность: %.2f, время: %s\n",
		len(result.Regions), len(result.Matches), result.Confidence, result.Duration)
	for i, match := range result.Matches {
		fmt.Printf("  %d. [%.2f] %s (%s) — %s\n", i+1, match.Score, match.Name, match.ItemID, match.Reason)
	}
	if result.Degraded {
		fmt.Println("Внимание: результат получен по резервному пути.")
	}
	return nil
}

// handleProbe печатает вердикты по возможностям конвейера.
func handleProbe(ctx context.Context, pipeline *application.Pipeline) {
	fmt.Println("Проверка возможностей конвейера:")
	for capability, status := range pipeline.Capabilities(ctx) {
		if status.Available {
			fmt.Printf("  %-13s доступна\n", capability)
		} else {
			fmt.Printf("  %-13s недоступна: %s\n", capability, status.Reason)
		}
	}
}

// runDemo заполняет каталог демонстрационными данными и показывает
// резервный текстовый поиск без единой модели.
func runDemo(ctx context.Context, pipeline *application.Pipeline, source *catalog.SQLiteCatalogSource) error {
	fmt.Println("=== Демонстрация конвейера идентификации ===")

	entries, err := source.LoadEntries(ctx)
	if err != nil {
		return fmt.Errorf("ошибка чтения каталога: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("Заполняем каталог демонстрационными данными...")
		if err := source.SaveEntries(ctx, catalog.SeedEntries()); err != nil {
			return fmt.Errorf("ошибка заполнения каталога: %w", err)
		}
	} else {
		fmt.Printf("Каталог уже содержит %d записей\n", len(entries))
	}

	if err := pipeline.RebuildCatalogIndex(ctx); err != nil {
		return fmt.Errorf("ошибка построения индекса: %w", err)
	}

	handleProbe(ctx, pipeline)
	fmt.Println("\nКаталог готов. Запустите идентификацию:")
	fmt.Println("  -action=identify -image=path/to/photo.jpg")
	return nil
}
