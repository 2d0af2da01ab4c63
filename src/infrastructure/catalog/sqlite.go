package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"nesventory-vision/src/domain"
)

// SQLiteCatalogSource источник записей каталога на SQLite.
type SQLiteCatalogSource struct {
	db *sqlx.DB
}

// NewSQLiteCatalogSource открывает базу каталога и создаёт схему.
func NewSQLiteCatalogSource(dbPath string) (*SQLiteCatalogSource, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	src := &SQLiteCatalogSource{db: db}
	if err := src.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось инициализировать схему: %w", err)
	}

	return src, nil
}

// initSchema инициализирует схему базы данных.
func (s *SQLiteCatalogSource) initSchema() error {
	schema := `CREATE TABLE IF NOT EXISTS catalog_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		collection TEXT,
		category TEXT,
		description TEXT,
		embedding TEXT
	)`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ошибка при создании таблицы: %w", err)
	}
	return nil
}

// catalogRow строка таблицы catalog_items.
type catalogRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Collection  string `db:"collection"`
	Category    string `db:"category"`
	Description string `db:"description"`
	Embedding   string `db:"embedding"` // вектор как JSON-массив, пустая строка — вектора нет
}

// LoadEntries загружает записи каталога в порядке вставки.
func (s *SQLiteCatalogSource) LoadEntries(ctx context.Context) ([]domain.CatalogEntry, error) {
	query := `SELECT id, name,
		COALESCE(collection, '') AS collection,
		COALESCE(category, '') AS category,
		COALESCE(description, '') AS description,
		COALESCE(embedding, '') AS embedding
		FROM catalog_items ORDER BY rowid`

	var rows []catalogRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	entries := make([]domain.CatalogEntry, 0, len(rows))
	for _, row := range rows {
		entry := domain.CatalogEntry{
			ID:          row.ID,
			Name:        row.Name,
			Collection:  row.Collection,
			Category:    row.Category,
			Description: row.Description,
		}
		if row.Embedding != "" {
			if err := json.Unmarshal([]byte(row.Embedding), &entry.Embedding); err != nil {
				return nil, fmt.Errorf("повреждённый вектор записи %s: %w", row.ID, err)
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// SaveEntries сохраняет записи каталога, заменяя существующие
// с теми же идентификаторами.
func (s *SQLiteCatalogSource) SaveEntries(ctx context.Context, entries []domain.CatalogEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT OR REPLACE INTO catalog_items
		(id, name, collection, category, description, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("не удалось подготовить SQL для записи каталога: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		var embedding string
		if len(entry.Embedding) > 0 {
			data, err := json.Marshal(entry.Embedding)
			if err != nil {
				return fmt.Errorf("не удалось сериализовать вектор записи %s: %w", entry.ID, err)
			}
			embedding = string(data)
		}

		if _, err := stmt.ExecContext(ctx, entry.ID, entry.Name, entry.Collection,
			entry.Category, entry.Description, embedding); err != nil {
			return fmt.Errorf("не удалось вставить запись %s: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("не удалось зафиксировать транзакцию: %w", err)
	}
	return nil
}

// Close закрывает соединение с базой данных.
func (s *SQLiteCatalogSource) Close() error {
	return s.db.Close()
}
