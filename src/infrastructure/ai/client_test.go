package ai

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `inference:
  base_url: "http://localhost:5000"
  api_key: "test-key"
  timeout: 10
  rate_limit: 100
  embedding_dim: 512
capabilities:
  detector: true
  embedder: true
  ocr: false
  captioner: true
pipeline:
  min_detection_confidence: 0.25
  min_similarity: 0.3
  top_k: 5
  caption_confidence: 0.85
  default_limit: 10
  backend: "auto"
logging:
  level: "debug"
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig(writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", config.Inference.BaseURL)
	assert.Equal(t, "test-key", config.Inference.APIKey)
	assert.Equal(t, 10, config.Inference.TimeoutSecs)
	assert.Equal(t, 512, config.Inference.EmbeddingDim)
	assert.True(t, config.Capabilities.Detector)
	assert.False(t, config.Capabilities.OCR)
	assert.InDelta(t, 0.3, config.Pipeline.MinSimilarity, 1e-9)
	assert.Equal(t, "auto", config.Pipeline.Backend)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "нет-такого.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INFERENCE_API_KEY", "env-key")
	t.Setenv("INFERENCE_BASE_URL", "http://inference.internal:8080")

	config, err := LoadConfig(writeTestConfig(t))
	require.NoError(t, err)
	client := NewInferenceClientFromConfig(config)

	assert.Equal(t, "env-key", client.Config().Inference.APIKey)
	assert.Equal(t, "http://inference.internal:8080", client.Config().Inference.BaseURL)
}

func TestDefaultTimeout(t *testing.T) {
	var config Config
	client := NewInferenceClientFromConfig(config)
	assert.Equal(t, 30, client.Config().Inference.TimeoutSecs)
}

// newServerClient поднимает httptest-сервер и клиент, направленный на него.
func newServerClient(t *testing.T, handler http.HandlerFunc) *InferenceClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var config Config
	config.Inference.BaseURL = server.URL
	config.Inference.APIKey = "test-key"
	config.Inference.EmbeddingDim = 2
	return NewInferenceClientFromConfig(config)
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func TestPing(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, client.Ping(context.Background()))
}

func TestPingServerDown(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	assert.Error(t, client.Ping(context.Background()))
}

func TestDetect(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotEmpty(t, payload["image"], "изображение передаётся в base64")

		json.NewEncoder(w).Encode(map[string]any{
			"detections": []map[string]any{
				{"x1": 10, "y1": 20, "x2": 110, "y2": 220, "class": "building", "confidence": 0.93},
				{"x1": 0, "y1": 0, "x2": 50, "y2": 50, "class": "figurine", "confidence": 0.71},
			},
		})
	})

	detections, err := client.Detect(context.Background(), testImage())
	require.NoError(t, err)
	require.Len(t, detections, 2)

	assert.Equal(t, "building", detections[0].Class)
	assert.Equal(t, 10, detections[0].Box.X1)
	assert.Equal(t, 220, detections[0].Box.Y2)
	assert.InDelta(t, 0.93, detections[0].Confidence, 1e-9)
}

func TestEmbedImage(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/image", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.6, 0.8}})
	})

	vec, err := client.EmbedImage(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.6, 0.8}, vec)
	assert.Equal(t, 2, client.Dimensions())
}

func TestEmbedImageEmptyVector(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{}})
	})

	_, err := client.EmbedImage(context.Background(), testImage())
	assert.Error(t, err)
}

func TestEmbedText(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/text", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "victorian counting house", payload["text"])

		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 0}})
	})

	vec, err := client.EmbedText(context.Background(), "victorian counting house")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, vec)
}

func TestExtractText(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ocr", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"text": "Dept 56 Dickens Village"})
	})

	text, err := client.ExtractText(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "Dept 56 Dickens Village", text)
}

func TestCaption(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/caption", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"caption": "a miniature lit house", "confidence": 0.77})
	})

	caption, err := client.Caption(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "a miniature lit house", caption.Text)
	assert.InDelta(t, 0.77, caption.Confidence, 1e-9)
}

func TestPostErrorStatus(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "модель не загружена", http.StatusInternalServerError)
	})

	_, err := client.Detect(context.Background(), testImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "статус 500")
}

func TestPostCancelledContext(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"text": ""})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ExtractText(ctx, testImage())
	assert.Error(t, err)
}
