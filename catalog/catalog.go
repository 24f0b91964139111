package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/nestedset"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("category not found")

// Catalog persists categories with gorm and calls the nested-set lifecycle
// callbacks around each write, inside the same transaction.
type Catalog struct {
	db     *gorm.DB
	engine *nestedset.Engine
	log    *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("system", "catalog")

	store, err := nestedset.NewGormStore(db, models.CategoryColumns())
	if err != nil {
		return nil, err
	}
	return &Catalog{
		db:     db,
		engine: nestedset.New(store, nestedset.WithLogger(logger)),
		log:    logger,
	}, nil
}

func (c *Catalog) Migrate() error {
	return c.db.AutoMigrate(&models.Category{})
}

func (c *Catalog) Ping(ctx context.Context) error {
	sqldb, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}

// Engine exposes the tree reads and moves over the categories table.
func (c *Catalog) Engine() *nestedset.Engine {
	return c.engine
}

// transaction runs fn with an engine bound to the gorm transaction.
func (c *Catalog) transaction(ctx context.Context, fn func(tx *gorm.DB, eng *nestedset.Engine) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store, err := nestedset.NewGormStore(tx, models.CategoryColumns())
		if err != nil {
			return err
		}
		return fn(tx, c.engine.Tx(store))
	})
}

func (c *Catalog) Get(ctx context.Context, id int64) (*models.Category, error) {
	return get(ctx, c.db, id)
}

func get(ctx context.Context, db *gorm.DB, id int64) (*models.Category, error) {
	var cat models.Category
	if err := db.WithContext(ctx).Limit(1).Find(&cat, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if cat.ID == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return &cat, nil
}

// List returns every category in preorder.
func (c *Catalog) List(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := c.db.WithContext(ctx).Order("lft asc").Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

// Create adds a category, under parent when it is not nil.
func (c *Catalog) Create(ctx context.Context, name string, parent *int64) (*models.Category, error) {
	cat := &models.Category{Name: name, ParentID: parent}
	err := c.transaction(ctx, func(tx *gorm.DB, eng *nestedset.Engine) error {
		n := cat.Node()
		if err := eng.OnBeforeCreate(ctx, n); err != nil {
			return err
		}
		if err := eng.OnBeforeSave(ctx, n); err != nil {
			return err
		}
		cat.SetTree(n)
		if err := tx.Create(cat).Error; err != nil {
			return err
		}
		n.ID = cat.ID
		if err := eng.OnAfterSave(ctx, n); err != nil {
			return err
		}
		cat.SetTree(n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("created category", "id", cat.ID, "name", cat.Name, "parent", cat.ParentID)
	return cat, nil
}

// Save writes a category. A changed ParentID moves the category, with its
// subtree, under the new parent (or to a new root when nil).
func (c *Catalog) Save(ctx context.Context, cat *models.Category) error {
	if cat.ID == 0 {
		return fmt.Errorf("%w: category has no id", nestedset.ErrInvalidState)
	}
	return c.transaction(ctx, func(tx *gorm.DB, eng *nestedset.Engine) error {
		return save(ctx, tx, eng, cat)
	})
}

func save(ctx context.Context, tx *gorm.DB, eng *nestedset.Engine, cat *models.Category) error {
	n := cat.Node()
	if err := eng.OnBeforeSave(ctx, n); err != nil {
		return err
	}
	cat.SetTree(n)
	if err := tx.Save(cat).Error; err != nil {
		return err
	}
	if err := eng.OnAfterSave(ctx, n); err != nil {
		return err
	}

	fresh, err := get(ctx, tx, cat.ID)
	if err != nil {
		return err
	}
	*cat = *fresh
	return nil
}

// update loads id inside the write transaction, applies fn and saves, so
// the parent compared by OnBeforeSave is never stale.
func (c *Catalog) update(ctx context.Context, id int64, fn func(cat *models.Category)) (*models.Category, error) {
	var out *models.Category
	err := c.transaction(ctx, func(tx *gorm.DB, eng *nestedset.Engine) error {
		cat, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		fn(cat)
		if err := save(ctx, tx, eng, cat); err != nil {
			return err
		}
		out = cat
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rename writes only the name column; tree columns are left alone.
func (c *Catalog) Rename(ctx context.Context, id int64, name string) (*models.Category, error) {
	var out *models.Category
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Category{}).Where("id = ?", id).Update("name", name)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		var err error
		out, err = get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reparent changes the parent attribute and lets Save realign the tree.
func (c *Catalog) Reparent(ctx context.Context, id int64, parent *int64) (*models.Category, error) {
	return c.update(ctx, id, func(cat *models.Category) {
		cat.ParentID = parent
	})
}

// Move places a category relative to target.
func (c *Catalog) Move(ctx context.Context, id, target int64, pos nestedset.Position) (*models.Category, error) {
	cat, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n := cat.Node()
	if err := c.engine.MoveTo(ctx, n, nestedset.TargetID(target), pos); err != nil {
		return nil, err
	}
	cat.SetTree(n)
	return cat, nil
}

// Delete removes a category and everything below it.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	return c.transaction(ctx, func(tx *gorm.DB, eng *nestedset.Engine) error {
		cat, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := eng.OnBeforeDelete(ctx, cat.Node()); err != nil {
			return err
		}
		if err := tx.Delete(&models.Category{}, id).Error; err != nil {
			return err
		}
		c.log.Info("deleted category", "id", id, "name", cat.Name)
		return nil
	})
}

// Hierarchy materializes the subtree rooted at id, or every tree when id is
// nil.
func (c *Catalog) Hierarchy(ctx context.Context, id *int64) ([]*nestedset.TreeNode, error) {
	var (
		nodes []*nestedset.Node
		err   error
	)
	if id == nil {
		nodes, err = c.engine.Tree(ctx)
	} else {
		var cat *models.Category
		cat, err = c.Get(ctx, *id)
		if err != nil {
			return nil, err
		}
		nodes, err = c.engine.DescendantsAndSelf(ctx, cat.Node())
	}
	if err != nil {
		return nil, err
	}
	return nestedset.BuildHierarchy(nodes), nil
}

// Path returns the ancestors of id followed by the category itself.
func (c *Catalog) Path(ctx context.Context, id int64) ([]*models.Category, error) {
	cat, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	nodes, err := c.engine.AncestorsAndSelf(ctx, cat.Node())
	if err != nil {
		return nil, err
	}
	out := make([]*models.Category, len(nodes))
	for i, n := range nodes {
		out[i] = models.CategoryFromNode(n)
	}
	return out, nil
}

func (c *Catalog) Check(ctx context.Context) (*nestedset.Report, error) {
	return c.engine.Check(ctx)
}

func (c *Catalog) Rebuild(ctx context.Context) (int, error) {
	return c.engine.Rebuild(ctx)
}
