package catalog

import "nesventory-vision/src/domain"

// SeedEntries возвращает демонстрационный набор записей каталога
// Department 56. Используется действием demo и тестами.
func SeedEntries() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{
			ID:          "dept56-58483",
			Name:        "Scrooge & Marley Counting House",
			Collection:  "Dickens Village",
			Category:    "Buildings",
			Description: "The famous counting house from A Christmas Carol where Ebenezer Scrooge worked. Detailed Victorian architecture with snow-covered roof.",
		},
		{
			ID:          "dept56-58482",
			Name:        "The Old Curiosity Shop",
			Collection:  "Dickens Village",
			Category:    "Buildings",
			Description: "Quaint shop inspired by Dickens' novel of the same name. Tudor-style building with antique shop front and living quarters above.",
		},
		{
			ID:          "dept56-57501",
			Name:        "Crown & Cricket Inn",
			Collection:  "Dickens Village",
			Category:    "Buildings",
			Description: "Traditional English pub and inn with Tudor architecture, exposed timber beams and a warm, welcoming atmosphere.",
		},
		{
			ID:          "dept56-65277",
			Name:        "Carolers - Set of 3",
			Collection:  "Dickens Village",
			Category:    "Accessories",
			Description: "Three Victorian carolers in period dress singing holiday songs. Two adults and one child holding songbooks.",
		},
		{
			ID:          "dept56-54305",
			Name:        "Snow Village Lighthouse",
			Collection:  "Original Snow Village",
			Category:    "Buildings",
			Description: "Classic American lighthouse covered in snow with a rotating beacon light and keeper's cottage.",
		},
		{
			ID:          "dept56-56384",
			Name:        "Santa's Workshop",
			Collection:  "North Pole Series",
			Category:    "Buildings",
			Description: "Santa's magical North Pole workshop with elf buildings and a toy factory decorated for Christmas.",
		},
	}
}
