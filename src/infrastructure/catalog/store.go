package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"nesventory-vision/src/domain"
)

// Режимы бэкенда векторного поиска.
const (
	BackendAuto   = "auto"
	BackendLinear = "linear"
	BackendHeap   = "heap"
)

// acceleratedThreshold минимальный размер каталога, при котором режим
// auto включает ускоренный бэкенд.
const acceleratedThreshold = 256

// Options параметры хранилища каталога.
type Options struct {
	Backend string // BackendAuto, BackendLinear или BackendHeap
	Log     *logrus.Logger
}

// Hit результат поиска по каталогу.
type Hit struct {
	Entry domain.CatalogEntry
	Score float64 // косинусное сходство [-1, 1] для векторов, доля совпавших токенов [0, 1] для текста
}

// catalogIndex неизменяемый снимок построенного индекса. Читатели
// работают со снимком целиком и никогда не видят частично
// построенный индекс.
type catalogIndex struct {
	entries []domain.CatalogEntry // в порядке вставки
	dims    int
	vectors [][]float64 // нормализованные векторы
	vecPos  []int       // vecPos[j] — позиция записи j-го вектора в entries
	tokens  []map[string]struct{}
	backend vectorBackend
}

// Store хранилище эмбеддингов каталога с текстовым индексом для
// резервного семантического поиска. Инициализируется лениво ровно
// один раз; перестраивается атомарной заменой снимка.
type Store struct {
	source      domain.CatalogSource
	backendMode string
	log         *logrus.Logger

	initOnce  sync.Once
	initErr   error
	rebuildMu sync.Mutex
	idx       atomic.Pointer[catalogIndex]
}

// New создаёт хранилище каталога поверх источника записей.
func New(source domain.CatalogSource, opts Options) *Store {
	mode := opts.Backend
	if mode == "" {
		mode = BackendAuto
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		source:      source,
		backendMode: mode,
		log:         log,
	}
}

// Initialize строит индекс при первом обращении. Конкурентные первые
// вызовы запускают не более одного построения; результат (в том числе
// ошибка) запоминается на всё время жизни процесса.
func (s *Store) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.Rebuild(ctx)
	})
	return s.initErr
}

// Rebuild перестраивает индекс из источника и атомарно заменяет
// действующий снимок. Идемпотентен; при ошибке прежний индекс
// остаётся действующим.
func (s *Store) Rebuild(ctx context.Context) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	entries, err := s.source.LoadEntries(ctx)
	if err != nil {
		return domain.NewError(domain.ErrBuild, "не удалось загрузить записи каталога", err)
	}

	idx, err := s.buildIndex(entries)
	if err != nil {
		return err
	}

	s.idx.Store(idx)
	s.log.WithFields(logrus.Fields{
		"entries": len(idx.entries),
		"vectors": len(idx.vectors),
		"backend": idx.backend.Name(),
	}).Info("Индекс каталога построен")
	return nil
}

// buildIndex строит снимок индекса из последовательности записей.
func (s *Store) buildIndex(entries []domain.CatalogEntry) (*catalogIndex, error) {
	idx := &catalogIndex{
		entries: make([]domain.CatalogEntry, 0, len(entries)),
		tokens:  make([]map[string]struct{}, 0, len(entries)),
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.ID == "" {
			return nil, domain.Errorf(domain.ErrBuild, "запись каталога без идентификатора: %q", entry.Name)
		}
		if _, dup := seen[entry.ID]; dup {
			s.log.WithField("item_id", entry.ID).Warn("Повторный идентификатор в каталоге, запись пропущена")
			continue
		}
		seen[entry.ID] = struct{}{}

		pos := len(idx.entries)
		if len(entry.Embedding) > 0 {
			if idx.dims == 0 {
				idx.dims = len(entry.Embedding)
			} else if len(entry.Embedding) != idx.dims {
				return nil, domain.Errorf(domain.ErrBuild,
					"размерность вектора записи %s равна %d, ожидается %d",
					entry.ID, len(entry.Embedding), idx.dims)
			}

			vec, ok := normalize(entry.Embedding)
			if !ok {
				s.log.WithField("item_id", entry.ID).Warn("Нулевой вектор записи, визуальный поиск по ней недоступен")
				entry.Embedding = nil
			} else {
				entry.Embedding = vec
				idx.vectors = append(idx.vectors, vec)
				idx.vecPos = append(idx.vecPos, pos)
			}
		}

		idx.entries = append(idx.entries, entry)
		idx.tokens = append(idx.tokens, tokenSet(entry.Name, entry.Collection, entry.Category, entry.Description))
	}

	switch {
	case s.backendMode == BackendHeap,
		s.backendMode == BackendAuto && len(idx.vectors) >= acceleratedThreshold:
		idx.backend = &heapBackend{vectors: idx.vectors}
	default:
		idx.backend = &linearBackend{vectors: idx.vectors}
	}

	return idx, nil
}

// normalize возвращает копию вектора единичной длины.
// false — вектор нулевой и нормализации не поддаётся.
func normalize(vec []float64) ([]float64, bool) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return nil, false
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out, true
}

// Ready сообщает, построен ли индекс.
func (s *Store) Ready() bool {
	return s.idx.Load() != nil
}

// Len возвращает число записей в действующем индексе.
func (s *Store) Len() int {
	idx := s.idx.Load()
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// HasVectorIndex сообщает, есть ли в действующем индексе хотя бы один
// предвычисленный вектор.
func (s *Store) HasVectorIndex() bool {
	idx := s.idx.Load()
	return idx != nil && len(idx.vectors) > 0
}

// Dimensions возвращает размерность векторов индекса, 0 если векторов нет.
func (s *Store) Dimensions() int {
	idx := s.idx.Load()
	if idx == nil {
		return 0
	}
	return idx.dims
}

// BackendName возвращает имя действующего бэкенда векторного поиска.
func (s *Store) BackendName() string {
	idx := s.idx.Load()
	if idx == nil {
		return ""
	}
	return idx.backend.Name()
}

// SearchVector ищет topK ближайших записей по косинусному сходству.
// Запрос нормализуется. Равные сходства разрешаются порядком вставки
// в каталог независимо от бэкенда.
func (s *Store) SearchVector(query []float64, topK int, collection string) ([]Hit, error) {
	idx := s.idx.Load()
	if idx == nil {
		return nil, fmt.Errorf("индекс каталога не построен")
	}
	if len(idx.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != idx.dims {
		return nil, fmt.Errorf("размерность запроса %d не совпадает с размерностью индекса %d", len(query), idx.dims)
	}

	q, ok := normalize(query)
	if !ok {
		return nil, fmt.Errorf("нулевой вектор запроса")
	}

	keep := idx.collectionFilter(collection, idx.vecPos)
	hits := idx.backend.TopK(q, topK, keep)

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		out = append(out, Hit{Entry: idx.entries[idx.vecPos[h.pos]], Score: h.score})
	}
	return out, nil
}

// SearchText лексический поиск по текстовому индексу каталога.
// Оценка — доля токенов запроса, встречающихся в описании записи.
func (s *Store) SearchText(query string, topK int, collection string) []Hit {
	idx := s.idx.Load()
	if idx == nil {
		return []Hit{}
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return []Hit{}
	}

	type scored struct {
		pos   int
		score float64
	}
	hits := make([]scored, 0, len(idx.entries))
	for pos := range idx.entries {
		if collection != "" && !strings.EqualFold(idx.entries[pos].Collection, collection) {
			continue
		}
		score := overlapScore(queryTokens, idx.tokens[pos])
		if score > 0 {
			hits = append(hits, scored{pos: pos, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		out = append(out, Hit{Entry: idx.entries[h.pos], Score: h.score})
	}
	return out
}

// collectionFilter возвращает фильтр позиций векторов по коллекции,
// nil если фильтрация не нужна.
func (idx *catalogIndex) collectionFilter(collection string, vecPos []int) func(pos int) bool {
	if collection == "" {
		return nil
	}
	return func(pos int) bool {
		return strings.EqualFold(idx.entries[vecPos[pos]].Collection, collection)
	}
}
