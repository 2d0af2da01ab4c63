package application

import (
	"sort"

	"nesventory-vision/src/domain"
)

// mergeMatches объединяет совпадения всех областей в один список:
// дедупликация по идентификатору элемента (остаётся вхождение с
// большей нормализованной оценкой вместе со своей областью),
// устойчивая сортировка по убыванию релевантности и усечение до
// запрошенного предела. Функция чистая: результат зависит только от
// аргументов.
func mergeMatches(matches []domain.Match, limit int) []domain.Match {
	kept := make([]domain.Match, 0, len(matches))
	byItem := make(map[string]int, len(matches))

	for _, match := range matches {
		idx, ok := byItem[match.ItemID]
		if !ok {
			byItem[match.ItemID] = len(kept)
			kept = append(kept, match)
			continue
		}
		// При равных оценках остаётся более раннее вхождение.
		if match.Score > kept[idx].Score {
			kept[idx] = match
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	if limit >= 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// overallConfidence общая уверенность результата: релевантность
// лучшего совпадения, 0 при их отсутствии.
func overallConfidence(matches []domain.Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	return matches[0].Score
}
