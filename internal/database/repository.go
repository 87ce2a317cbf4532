package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// EntityMapper defines the interface for mapping between domain and database model types.
type EntityMapper[D any, E any] interface {
	ToDomain(entity E) D
	ToModel(domain D) E
}

// Scope narrows a query. Scopes are applied in order through gorm's Scopes.
type Scope func(*gorm.DB) *gorm.DB

// Where returns a Scope adding a WHERE clause.
func Where(query string, args ...any) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) }
}

// OrderBy returns a Scope adding an ORDER BY clause.
func OrderBy(column string) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Order(column) }
}

// Limit returns a Scope capping the number of rows. Non-positive values are ignored.
func Limit(n int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	}
}

// Repository provides generic read and write operations for one model type.
type Repository[D any, E any] struct {
	db     Database
	mapper EntityMapper[D, E]
	label  string
}

// NewRepository creates a new Repository.
func NewRepository[D any, E any](db Database, mapper EntityMapper[D, E], label string) Repository[D, E] {
	return Repository[D, E]{
		db:     db,
		mapper: mapper,
		label:  label,
	}
}

func (r Repository[D, E]) apply(db *gorm.DB, scopes []Scope) *gorm.DB {
	fns := make([]func(*gorm.DB) *gorm.DB, len(scopes))
	for i, s := range scopes {
		fns[i] = s
	}
	return db.Model(new(E)).Scopes(fns...)
}

// Find retrieves entities matching the given scopes.
func (r Repository[D, E]) Find(ctx context.Context, scopes ...Scope) ([]D, error) {
	var entities []E
	if err := r.apply(r.db.Session(ctx), scopes).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", r.label, err)
	}

	domains := make([]D, len(entities))
	for i, entity := range entities {
		domains[i] = r.mapper.ToDomain(entity)
	}
	return domains, nil
}

// Count returns the number of entities matching the given scopes.
func (r Repository[D, E]) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	var count int64
	if err := r.apply(r.db.Session(ctx), scopes).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", r.label, err)
	}
	return count, nil
}

// CreateAll inserts all domains in batches within tx.
func (r Repository[D, E]) CreateAll(tx *gorm.DB, domains []D, batchSize int) error {
	if len(domains) == 0 {
		return nil
	}
	entities := make([]E, len(domains))
	for i, d := range domains {
		entities[i] = r.mapper.ToModel(d)
	}
	if err := tx.CreateInBatches(&entities, batchSize).Error; err != nil {
		return fmt.Errorf("create %s: %w", r.label, err)
	}
	return nil
}

// DB returns a GORM session scoped to the model.
func (r Repository[D, E]) DB(ctx context.Context) *gorm.DB {
	return r.db.Session(ctx).Model(new(E))
}

// Database returns the underlying Database.
func (r Repository[D, E]) Database() Database {
	return r.db
}
