package catalog

import (
	"container/heap"
	"sort"
	"strings"
	"unicode"
)

// vectorHit позиция вектора в порядке вставки каталога и его
// косинусное сходство с запросом.
type vectorHit struct {
	pos   int
	score float64
}

// vectorBackend бэкенд поиска ближайших соседей. Оба бэкенда обязаны
// возвращать побитово одинаковые ранжирования для одного запроса и
// каталога: одинаковые позиции в одинаковом порядке. Равные сходства
// разрешаются порядком вставки в каталог.
type vectorBackend interface {
	Name() string
	TopK(query []float64, k int, keep func(pos int) bool) []vectorHit
}

// dot скалярное произведение. Векторы единичной длины, поэтому
// результат равен косинусному сходству.
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// better сообщает, должен ли кандидат a стоять в выдаче раньше b.
func better(a, b vectorHit) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.pos < b.pos
}

// linearBackend исчерпывающий проход по всем векторам каталога
// с последующей сортировкой.
type linearBackend struct {
	vectors [][]float64
}

func (l *linearBackend) Name() string { return "linear" }

func (l *linearBackend) TopK(query []float64, k int, keep func(pos int) bool) []vectorHit {
	hits := make([]vectorHit, 0, len(l.vectors))
	for pos, vec := range l.vectors {
		if keep != nil && !keep(pos) {
			continue
		}
		hits = append(hits, vectorHit{pos: pos, score: dot(query, vec)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return better(hits[i], hits[j])
	})

	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// hitHeap минимальная куча кандидатов: на вершине худший из
// удерживаемых, его вытесняет любой лучший кандидат.
type hitHeap []vectorHit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)         { *h = append(*h, x.(vectorHit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// heapBackend ускоренный выбор top-K через кучу: не сортирует весь
// каталог, а удерживает только K лучших кандидатов.
type heapBackend struct {
	vectors [][]float64
}

func (b *heapBackend) Name() string { return "heap" }

func (b *heapBackend) TopK(query []float64, k int, keep func(pos int) bool) []vectorHit {
	if k == 0 {
		return []vectorHit{}
	}

	h := make(hitHeap, 0, k+1)
	for pos, vec := range b.vectors {
		if keep != nil && !keep(pos) {
			continue
		}
		hit := vectorHit{pos: pos, score: dot(query, vec)}
		if k < 0 || len(h) < k {
			heap.Push(&h, hit)
			continue
		}
		if better(hit, h[0]) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	// Извлекаем от худшего к лучшему и разворачиваем.
	hits := make([]vectorHit, len(h))
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(&h).(vectorHit)
	}
	return hits
}

// tokenize разбивает текст на нормализованные токены для
// лексического индекса.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenSet строит множество токенов документа.
func tokenSet(parts ...string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, part := range parts {
		for _, tok := range tokenize(part) {
			set[tok] = struct{}{}
		}
	}
	return set
}

// overlapScore доля токенов запроса, встречающихся в документе.
// Результат в [0, 1]; пустой запрос даёт 0.
func overlapScore(queryTokens []string, doc map[string]struct{}) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	matches := 0
	for _, tok := range queryTokens {
		if _, ok := doc[tok]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTokens))
}
