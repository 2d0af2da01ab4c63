package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxDimensions(t *testing.T) {
	box := BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 70}

	assert.Equal(t, 100, box.Width())
	assert.Equal(t, 50, box.Height())
}

func TestRegionOCRTextDistinguishesAbsence(t *testing.T) {
	// nil — OCR не выполнялся, пустая строка — выполнялся, но ничего
	// не нашёл. Потребители обязаны различать эти случаи.
	notAttempted := Region{ID: "r1", Label: "building"}
	assert.Nil(t, notAttempted.OCRText)

	empty := ""
	attempted := Region{ID: "r2", Label: "building", OCRText: &empty}
	assert.NotNil(t, attempted.OCRText)
	assert.Equal(t, "", *attempted.OCRText)
}

func TestErrorKinds(t *testing.T) {
	cause := fmt.Errorf("низкоуровневый сбой")
	err := NewError(ErrProcessing, "сбой сопоставления", cause)

	assert.True(t, IsKind(err, ErrProcessing))
	assert.False(t, IsKind(err, ErrInvalidInput))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "processing")
	assert.Contains(t, err.Error(), "сбой сопоставления")
}

func TestErrorfWithoutCause(t *testing.T) {
	err := Errorf(ErrInvalidInput, "неподдерживаемый тип: %q", "text/plain")

	assert.True(t, IsKind(err, ErrInvalidInput))
	assert.Nil(t, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "text/plain")
}

func TestIsKindOnWrappedError(t *testing.T) {
	inner := Errorf(ErrBuild, "индекс не построен")
	wrapped := fmt.Errorf("перестроение: %w", inner)

	assert.True(t, IsKind(wrapped, ErrBuild))
	assert.False(t, IsKind(errors.New("обычная ошибка"), ErrBuild))
}
