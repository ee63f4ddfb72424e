package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert or update violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
)

// Cond is a SQL predicate with its bound arguments. The zero Cond matches every row.
type Cond struct {
	Query string
	Args  []any
}

// Where builds a Cond.
func Where(query string, args ...any) Cond {
	return Cond{Query: query, Args: args}
}

// Page bounds a list query. Order is a raw ORDER BY clause.
type Page struct {
	Offset int
	Limit  int
	Order  string
}

func (c Cond) apply(db *gorm.DB) *gorm.DB {
	if c.Query == "" {
		return db
	}
	return db.Where(c.Query, c.Args...)
}

// Repository is the generic find/save/remove/count collaborator over one model type.
type Repository[T any] struct {
	db *gorm.DB
}

// NewRepository binds a repository to db.
func NewRepository[T any](db *gorm.DB) *Repository[T] {
	return &Repository[T]{db: db}
}

// DB exposes the bound handle for queries the repository does not cover.
func (r *Repository[T]) DB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// Transaction runs fn with a repository bound to a single transaction.
func (r *Repository[T]) Transaction(ctx context.Context, fn func(tx *Repository[T]) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository[T]{db: tx})
	})
}

// FindByID loads the row with primary key id.
func (r *Repository[T]) FindByID(ctx context.Context, id any, preload ...string) (*T, error) {
	db := r.db.WithContext(ctx)
	for _, p := range preload {
		db = db.Preload(p)
	}
	var out T
	if err := db.First(&out, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// FindOne loads the first row matching c.
func (r *Repository[T]) FindOne(ctx context.Context, c Cond) (*T, error) {
	var out T
	if err := c.apply(r.db.WithContext(ctx)).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// FindMany lists rows matching c within page.
func (r *Repository[T]) FindMany(ctx context.Context, c Cond, page Page, preload ...string) ([]T, error) {
	db := c.apply(r.db.WithContext(ctx))
	for _, p := range preload {
		db = db.Preload(p)
	}
	if page.Order != "" {
		db = db.Order(page.Order)
	}
	if page.Offset > 0 {
		db = db.Offset(page.Offset)
	}
	if page.Limit > 0 {
		db = db.Limit(page.Limit)
	}
	var out []T
	if err := db.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of rows matching c.
func (r *Repository[T]) Count(ctx context.Context, c Cond) (int64, error) {
	var n int64
	var model T
	if err := c.apply(r.db.WithContext(ctx).Model(&model)).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Exists reports whether any row matches c.
func (r *Repository[T]) Exists(ctx context.Context, c Cond) (bool, error) {
	n, err := r.Count(ctx, c)
	return n > 0, err
}

// Create inserts v.
func (r *Repository[T]) Create(ctx context.Context, v *T) error {
	return translate(r.db.WithContext(ctx).Create(v).Error)
}

// Save upserts every field of v.
func (r *Repository[T]) Save(ctx context.Context, v *T) error {
	return translate(r.db.WithContext(ctx).Save(v).Error)
}

// Updates writes values to the row with primary key id and returns the
// affected count.
func (r *Repository[T]) Updates(ctx context.Context, id any, values map[string]any) (int64, error) {
	var model T
	res := r.db.WithContext(ctx).Model(&model).Where("id = ?", id).Updates(values)
	return res.RowsAffected, translate(res.Error)
}

// DeleteWhere removes every row matching c and returns the affected count.
// An empty Cond is rejected by gorm's global-delete guard.
func (r *Repository[T]) DeleteWhere(ctx context.Context, c Cond) (int64, error) {
	var model T
	res := c.apply(r.db.WithContext(ctx)).Delete(&model)
	return res.RowsAffected, res.Error
}

// DeleteByID removes the row with primary key id.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) (int64, error) {
	return r.DeleteWhere(ctx, Where("id = ?", id))
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
