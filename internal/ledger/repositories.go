package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repositories stores repository identity rows in one of the repository tables.
type Repositories struct {
	db    *gorm.DB
	table string
}

// NewRepositories returns a store bound to table.
func NewRepositories(db *gorm.DB, table string) *Repositories {
	return &Repositories{db: db, table: table}
}

// Table returns the table this store reads and writes.
func (r *Repositories) Table() string {
	return r.table
}

func (r *Repositories) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table)
}

// FindByURL returns the repository with url, or nil when absent.
func (r *Repositories) FindByURL(ctx context.Context, url string) (*Repository, error) {
	var repo Repository

	err := r.query(ctx).Where("url = ?", url).Take(&repo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find repository: %w", err)
	}

	return &repo, nil
}

// InsertOrGet returns the id of the repository with url, creating the row when
// absent. Concurrent callers for the same url observe the same id.
func (r *Repositories) InsertOrGet(ctx context.Context, url string, tool model.ApprovalTool) (int64, error) {
	if tool == "" {
		tool = model.ApprovalToolGit
	}

	row := Repository{URL: url, ApprovalTool: string(tool)}

	err := r.query(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to insert repository: %w", err)
	}

	existing, err := r.FindByURL(ctx, url)
	if err != nil {
		return 0, err
	}

	if existing == nil {
		return 0, &model.NotFoundError{Kind: "repository", ID: url}
	}

	return existing.ID, nil
}

// DeleteByURL removes the repository with url. Missing rows are not an error.
// Dependent task, location and workflow rows are removed by cascade.
func (r *Repositories) DeleteByURL(ctx context.Context, url string) error {
	if err := r.query(ctx).Where("url = ?", url).Delete(&Repository{}).Error; err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}

	return nil
}

// Sortable repository columns.
const (
	OrderURL          = "url"
	OrderApprovalTool = "approval_tool"
)

// Order sorts repositories by one column before paging. Ties keep insertion
// order. An empty Column orders by insertion only.
type Order struct {
	Column string
	Desc   bool
}

// ordered applies o to q. Postgres compares with the "C" collation so both
// stores order by bytes.
func (r *Repositories) ordered(q *gorm.DB, o Order) (*gorm.DB, error) {
	switch o.Column {
	case "":
	case OrderURL, OrderApprovalTool:
		expr := o.Column
		if r.db.Dialector.Name() == DriverPostgres {
			expr += ` COLLATE "C"`
		}

		if o.Desc {
			expr += " DESC"
		}

		q = q.Order(expr)
	default:
		return nil, fmt.Errorf("cannot order repositories by %q", o.Column)
	}

	return q.Order("id ASC"), nil
}

// ListPaged returns one page of repositories, optionally narrowed by a url
// search. Ordering is applied before the page is cut.
func (r *Repositories) ListPaged(ctx context.Context, page, size int, search string, order Order) (pagination.Page[Repository], error) {
	q, err := r.ordered(r.query(ctx), order)
	if err != nil {
		return pagination.Page[Repository]{}, err
	}

	return pagination.Query[Repository](ctx, q, &pagination.Search{Column: "url", Term: search}, page, size)
}

// Search returns every repository whose url contains term, in insertion order.
func (r *Repositories) Search(ctx context.Context, term string) ([]Repository, error) {
	var repos []Repository

	q := pagination.Filter(r.query(ctx), &pagination.Search{Column: "url", Term: term})
	if err := q.Order("id ASC").Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("failed to search repositories: %w", err)
	}

	return repos, nil
}

// FindAll returns every repository in the table.
func (r *Repositories) FindAll(ctx context.Context) ([]Repository, error) {
	var repos []Repository

	if err := r.query(ctx).Order("id ASC").Find(&repos).Error; err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	return repos, nil
}
