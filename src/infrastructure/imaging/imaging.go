package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"nesventory-vision/src/domain"
)

// supportedTypes поддерживаемые типы содержимого и ожидаемые форматы декодера.
var supportedTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/jpg":  "jpeg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// Decode проверяет и декодирует загруженное изображение.
// Возвращает ошибку вида invalid_input при пустых данных,
// неподдерживаемом типе содержимого или недекодируемых байтах.
func Decode(data []byte, contentType string) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", domain.Errorf(domain.ErrInvalidInput, "пустые данные изображения")
	}

	// Отбрасываем параметры вида "; charset=..."
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}

	if _, ok := supportedTypes[normalized]; !ok {
		return nil, "", domain.Errorf(domain.ErrInvalidInput,
			"неподдерживаемый тип содержимого: %q (ожидается JPEG, PNG, WebP или BMP)", contentType)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", domain.NewError(domain.ErrInvalidInput,
			fmt.Sprintf("не удалось декодировать изображение, заявленное как %q", contentType), err)
	}

	return img, format, nil
}

// ClampBox приводит рамку к границам изображения. Рамка, касающаяся
// края, проходит без изменений; выступающая за край обрезается.
// Возвращает false, если после обрезки область пуста.
func ClampBox(box domain.BoundingBox, bounds image.Rectangle) (image.Rectangle, bool) {
	r := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Intersect(bounds)
	return r, !r.Empty()
}

// Crop вырезает область изображения, предварительно обрезав рамку
// по границам изображения.
func Crop(img image.Image, box domain.BoundingBox) (image.Image, error) {
	r, ok := ClampBox(box, img.Bounds())
	if !ok {
		return nil, fmt.Errorf("область (%d,%d)-(%d,%d) вне границ изображения %v",
			box.X1, box.Y1, box.X2, box.Y2, img.Bounds())
	}

	// Копируем в отдельное изображение, чтобы область не ссылалась
	// на пиксели исходного изображения.
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out, nil
}
