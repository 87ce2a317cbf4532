package persistence

import (
	"context"
	"fmt"

	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/internal/database"
	"gorm.io/gorm"
)

// insertBatchSize bounds rows per INSERT statement.
const insertBatchSize = 500

const (
	pgCreateIncoming = `
CREATE TEMP TABLE tmp_incoming (
    repo TEXT,
    pr INTEGER,
    filepath TEXT,
    comment TEXT
) ON COMMIT DROP`

	sqliteCreateIncoming = `
CREATE TEMP TABLE tmp_incoming (
    repo TEXT,
    pr INTEGER,
    filepath TEXT,
    comment TEXT
)`

	sqliteDropIncoming = `DROP TABLE IF EXISTS temp.tmp_incoming`

	selectExisting = `
SELECT DISTINCT t.repo, t.pr, t.filepath, t.comment
FROM tmp_incoming t
JOIN arch_items a
  ON a.repo = t.repo
 AND a.pr = t.pr
 AND a.filepath = t.filepath
 AND a.comment = t.comment`
)

// incomingKey is one row of tmp_incoming.
type incomingKey struct {
	Repo     string `gorm:"column:repo"`
	PR       int    `gorm:"column:pr"`
	FilePath string `gorm:"column:filepath"`
	Comment  string `gorm:"column:comment"`
}

func (k incomingKey) identity() review.IdentityKey {
	return review.IdentityKey{Repo: k.Repo, PR: k.PR, FilePath: k.FilePath, Comment: k.Comment}
}

// ItemStore implements review.ItemStore on the arch_items table.
type ItemStore struct {
	db         database.Database
	items      database.Repository[review.EnrichedItem, ArchItemModel]
	candidates database.Repository[review.Candidate, ArchItemModel]
}

// NewItemStore creates an ItemStore.
func NewItemStore(db database.Database) ItemStore {
	return ItemStore{
		db:         db,
		items:      database.NewRepository[review.EnrichedItem, ArchItemModel](db, itemMapper{}, "arch item"),
		candidates: database.NewRepository[review.Candidate, ArchItemModel](db, candidateMapper{}, "candidate"),
	}
}

// NewRecords returns the records whose identity key is not yet stored, in
// input order. Keys are staged in a temporary table and matched against
// arch_items with a single join, all inside one transaction.
func (s ItemStore) NewRecords(ctx context.Context, records []review.RawRecord) ([]review.RawRecord, error) {
	if len(records) == 0 {
		return []review.RawRecord{}, nil
	}

	keys := make([]incomingKey, len(records))
	for i, r := range records {
		keys[i] = incomingKey{Repo: r.Repo(), PR: r.PRNumber(), FilePath: r.FilePath(), Comment: r.CommentBody()}
	}

	existing, err := database.WithTransactionResult(ctx, s.db, func(tx *gorm.DB) (map[review.IdentityKey]struct{}, error) {
		if err := s.stage(tx, keys); err != nil {
			return nil, err
		}

		var matched []incomingKey
		if err := tx.Raw(selectExisting).Scan(&matched).Error; err != nil {
			return nil, fmt.Errorf("match incoming keys: %w", err)
		}

		if s.db.IsSQLite() {
			if err := tx.Exec(sqliteDropIncoming).Error; err != nil {
				return nil, fmt.Errorf("drop tmp_incoming: %w", err)
			}
		}

		out := make(map[review.IdentityKey]struct{}, len(matched))
		for _, k := range matched {
			out[k.identity()] = struct{}{}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return review.Difference(records, existing), nil
}

func (s ItemStore) stage(tx *gorm.DB, keys []incomingKey) error {
	create := pgCreateIncoming
	if s.db.IsSQLite() {
		if err := tx.Exec(sqliteDropIncoming).Error; err != nil {
			return fmt.Errorf("drop stale tmp_incoming: %w", err)
		}
		create = sqliteCreateIncoming
	}
	if err := tx.Exec(create).Error; err != nil {
		return fmt.Errorf("create tmp_incoming: %w", err)
	}
	if err := tx.Table("tmp_incoming").CreateInBatches(&keys, insertBatchSize).Error; err != nil {
		return fmt.Errorf("stage incoming keys: %w", err)
	}
	return nil
}

// InsertAll appends items in one transaction.
func (s ItemStore) InsertAll(ctx context.Context, items []review.EnrichedItem) error {
	if len(items) == 0 {
		return nil
	}
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		return s.items.CreateAll(tx, items, insertBatchSize)
	})
}

// Candidates returns every item with a non-null embedding, in id order, with
// the embedding left in its stored encoding.
func (s ItemStore) Candidates(ctx context.Context) ([]review.Candidate, error) {
	return s.candidates.Find(ctx, database.Where("embedding IS NOT NULL"), database.OrderBy("id"))
}

// All returns every stored item in id order.
func (s ItemStore) All(ctx context.Context) ([]review.EnrichedItem, error) {
	return s.items.Find(ctx, database.OrderBy("id"))
}

// WithoutEmbeddings returns items whose embedding is null, in id order.
func (s ItemStore) WithoutEmbeddings(ctx context.Context) ([]review.EnrichedItem, error) {
	return s.items.Find(ctx, database.Where("embedding IS NULL"), database.OrderBy("id"))
}

// UpdateEmbedding sets the embedding of one item.
func (s ItemStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float64) error {
	result := s.items.DB(ctx).Where("id = ?", id).Update("embedding", NewEmbedding(embedding))
	if result.Error != nil {
		return fmt.Errorf("update embedding %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update embedding %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// Count returns the number of stored items.
func (s ItemStore) Count(ctx context.Context) (int64, error) {
	return s.items.Count(ctx)
}

var _ review.ItemStore = ItemStore{}
