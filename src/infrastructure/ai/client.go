package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"nesventory-vision/src/domain"
)

// Config структура конфигурации приложения.
type Config struct {
	Inference struct {
		BaseURL      string  `yaml:"base_url"`
		APIKey       string  `yaml:"api_key"`
		TimeoutSecs  int     `yaml:"timeout"` // таймаут одного инференс-вызова в секундах
		RateLimit    float64 `yaml:"rate_limit"`
		EmbeddingDim int     `yaml:"embedding_dim"`
	} `yaml:"inference"`
	Capabilities struct {
		Detector  bool `yaml:"detector"`
		Embedder  bool `yaml:"embedder"`
		OCR       bool `yaml:"ocr"`
		Captioner bool `yaml:"captioner"`
	} `yaml:"capabilities"`
	Pipeline struct {
		MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
		MinSimilarity          float64 `yaml:"min_similarity"` // порог нормализованной релевантности [0, 1]
		TopK                   int     `yaml:"top_k"`
		CaptionConfidence      float64 `yaml:"caption_confidence"` // уверенность синтетической области, когда captioner её не сообщает
		DefaultLimit           int     `yaml:"default_limit"`
		Backend                string  `yaml:"backend"` // auto, linear, heap
	} `yaml:"pipeline"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig загружает конфигурацию из YAML файла.
func LoadConfig(path string) (Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("ошибка парсинга YAML: %w", err)
	}

	return config, nil
}

// InferenceClient клиент инференс-сервера. Реализует контракты
// возможностей конвейера: детекцию, эмбеддинги, OCR и описание
// изображения.
type InferenceClient struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewInferenceClient создаёт новый экземпляр клиента инференса.
func NewInferenceClient(configPath string) (*InferenceClient, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	return NewInferenceClientFromConfig(config), nil
}

// NewInferenceClientFromConfig создаёт клиент из готовой конфигурации.
func NewInferenceClientFromConfig(config Config) *InferenceClient {
	// Переменные окружения имеют приоритет над файлом.
	if apiKey := os.Getenv("INFERENCE_API_KEY"); apiKey != "" {
		config.Inference.APIKey = apiKey
	}
	if baseURL := os.Getenv("INFERENCE_BASE_URL"); baseURL != "" {
		config.Inference.BaseURL = baseURL
	}

	if config.Inference.TimeoutSecs <= 0 {
		config.Inference.TimeoutSecs = 30
	}

	limit := rate.Inf
	if config.Inference.RateLimit > 0 {
		limit = rate.Limit(config.Inference.RateLimit)
	}

	return &InferenceClient{
		config: config,
		client: &http.Client{
			Timeout: time.Duration(config.Inference.TimeoutSecs) * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Config возвращает действующую конфигурацию клиента.
func (c *InferenceClient) Config() Config {
	return c.config
}

// Ping проверяет доступность инференс-сервера.
func (c *InferenceClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Inference.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("инференс-сервер недоступен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("инференс-сервер вернул статус %d", resp.StatusCode)
	}
	return nil
}

// detectResponse ответ эндпоинта /detect.
type detectResponse struct {
	Detections []struct {
		X1         int     `json:"x1"`
		Y1         int     `json:"y1"`
		X2         int     `json:"x2"`
		Y2         int     `json:"y2"`
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
	} `json:"detections"`
}

// Detect локализует объекты на изображении.
func (c *InferenceClient) Detect(ctx context.Context, img image.Image) ([]domain.Detection, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return nil, err
	}

	var out detectResponse
	if err := c.post(ctx, "/detect", map[string]any{"image": encoded}, &out); err != nil {
		return nil, err
	}

	detections := make([]domain.Detection, 0, len(out.Detections))
	for _, d := range out.Detections {
		detections = append(detections, domain.Detection{
			Box:        domain.BoundingBox{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2},
			Class:      d.Class,
			Confidence: d.Confidence,
		})
	}
	return detections, nil
}

// embedResponse ответ эндпоинтов эмбеддингов.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbedImage вычисляет векторное представление изображения.
func (c *InferenceClient) EmbedImage(ctx context.Context, img image.Image) ([]float64, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return nil, err
	}

	var out embedResponse
	if err := c.post(ctx, "/embed/image", map[string]any{"image": encoded}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("инференс-сервер вернул пустой вектор")
	}
	return out.Embedding, nil
}

// EmbedText вычисляет векторное представление текста в том же
// пространстве, что и EmbedImage.
func (c *InferenceClient) EmbedText(ctx context.Context, text string) ([]float64, error) {
	var out embedResponse
	if err := c.post(ctx, "/embed/text", map[string]any{"text": text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("инференс-сервер вернул пустой вектор")
	}
	return out.Embedding, nil
}

// Dimensions возвращает размерность векторного пространства.
func (c *InferenceClient) Dimensions() int {
	return c.config.Inference.EmbeddingDim
}

// ocrResponse ответ эндпоинта /ocr.
type ocrResponse struct {
	Text string `json:"text"`
}

// ExtractText извлекает текст из изображения.
func (c *InferenceClient) ExtractText(ctx context.Context, img image.Image) (string, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return "", err
	}

	var out ocrResponse
	if err := c.post(ctx, "/ocr", map[string]any{"image": encoded}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// captionResponse ответ эндпоинта /caption.
type captionResponse struct {
	Caption    string  `json:"caption"`
	Confidence float64 `json:"confidence"`
}

// Caption генерирует текстовое описание изображения.
func (c *InferenceClient) Caption(ctx context.Context, img image.Image) (domain.Caption, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return domain.Caption{}, err
	}

	var out captionResponse
	if err := c.post(ctx, "/caption", map[string]any{"image": encoded}, &out); err != nil {
		return domain.Caption{}, err
	}
	return domain.Caption{Text: out.Caption, Confidence: out.Confidence}, nil
}

// post выполняет JSON-запрос к инференс-серверу с учётом ограничителя
// частоты и таймаута одного вызова.
func (c *InferenceClient) post(ctx context.Context, path string, payload any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ожидание ограничителя частоты прервано: %w", err)
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка маршалинга JSON: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.config.Inference.TimeoutSecs)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		c.config.Inference.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	if c.config.Inference.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Inference.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ошибка API: статус %d, тело: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка разбора ответа: %w", err)
	}
	return nil
}

// encodeImage кодирует изображение в base64 PNG для передачи
// инференс-серверу.
func encodeImage(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("не удалось закодировать изображение: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
