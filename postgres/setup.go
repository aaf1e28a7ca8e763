package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/outfield-ai/outfield/document"
)

// JSONB maps a document to a jsonb column.
type JSONB map[string]any

// Value serializes the document for storage.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

// Scan deserializes a jsonb column into the document.
func (j *JSONB) Scan(value any) error {
	if value == nil {
		*j = JSONB{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("postgres: cannot scan %T into JSONB", value)
	}
	return json.Unmarshal(raw, j)
}

// Row is one document of one collection.
type Row struct {
	ID         uint   `gorm:"primaryKey"`
	Collection string `gorm:"uniqueIndex:idx_collection_row;size:255"`
	RowID      string `gorm:"uniqueIndex:idx_collection_row;size:255"`
	Doc        JSONB  `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName fixes the table name independent of gorm pluralization
// settings.
func (Row) TableName() string { return "outfield_documents" }

// Store is the postgres-backed document store.
type Store struct {
	cfg Config
	db  *gorm.DB
}

// NewStore connects to postgres and migrates the documents table.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Connection.Host,
		cfg.Connection.Port,
		cfg.Connection.User,
		cfg.Connection.Password,
		cfg.Connection.DbName,
		cfg.Connection.SSLMode)

	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}

	instance, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: getting database instance: %w", err)
	}

	maxOpen := cfg.ConnectionDetails.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 50
	}
	maxIdle := cfg.ConnectionDetails.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 25
	}
	maxLifetime := cfg.ConnectionDetails.ConnMaxLifetime
	if maxLifetime == 0 {
		maxLifetime = 1 * time.Minute
	}
	instance.SetMaxOpenConns(maxOpen)
	instance.SetMaxIdleConns(maxIdle)
	instance.SetConnMaxLifetime(maxLifetime)

	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, fmt.Errorf("postgres: migrating documents table: %w", err)
	}

	log.Println("INFO: Successfully connected to PostgresSQL database")
	return &Store{cfg: cfg, db: db}, nil
}

// DB exposes the underlying gorm handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Insert adds documents to a collection and returns their ids.
// Documents without an "_id" field get a generated one.
func (s *Store) Insert(collection string, docs []document.Document) ([]string, error) {
	ids := make([]string, len(docs))
	rows := make([]Row, len(docs))
	for i, d := range docs {
		id := uuid.NewString()
		if raw, ok := d.Get("_id"); ok {
			id = fmt.Sprint(raw)
		}
		stored := d.Copy()
		stored["_id"] = id
		rows[i] = Row{Collection: collection, RowID: id, Doc: JSONB(stored)}
		ids[i] = id
	}
	if err := s.db.Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres: inserting into %q: %w", collection, err)
	}
	return ids, nil
}

// GracefulShutdown closes the underlying connection pool.
func (s *Store) GracefulShutdown() error {
	instance, err := s.db.DB()
	if err != nil {
		return err
	}
	return instance.Close()
}
