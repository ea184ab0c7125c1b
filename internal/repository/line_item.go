package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/entity"
)

type LineItemRepository interface {
	// ReplaceForJob swaps the stored lines of a job for items in one transaction.
	ReplaceForJob(ctx context.Context, jobID uuid.UUID, source string, items []table.ParsedItem) ([]*entity.LineItem, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.LineItem, error)
	// ListAll returns the lines of jobIDs, or of every job when jobIDs is empty.
	ListAll(ctx context.Context, jobIDs []uuid.UUID) ([]*entity.LineItem, error)
}

type lineItemRepo struct {
	db  *DB
	log *slog.Logger
}

func NewLineItemRepository(db *DB, log *slog.Logger) LineItemRepository {
	if log == nil {
		log = slog.Default()
	}
	return &lineItemRepo{db: db, log: log}
}

func (r *lineItemRepo) ReplaceForJob(ctx context.Context, jobID uuid.UUID, source string, items []table.ParsedItem) ([]*entity.LineItem, error) {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbError("begin line item tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM line_items WHERE job_id = ?`), jobID.String()); err != nil {
		return nil, dbError("clear line items", err)
	}

	insert := r.db.rebind(`INSERT INTO line_items
		(id, job_id, position, item, specification, quantity, unit_price, supply_amount, vat, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	out := make([]*entity.LineItem, 0, len(items))
	for i, it := range items {
		li := &entity.LineItem{
			ID:            uuid.New(),
			JobID:         jobID,
			Position:      i,
			Item:          it.Item,
			Specification: it.Specification,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			SupplyAmount:  it.SupplyAmount,
			VAT:           it.VAT,
			Source:        source,
		}
		_, err := tx.ExecContext(ctx, insert,
			li.ID.String(), jobID.String(), li.Position, li.Item, li.Specification, li.Quantity,
			li.UnitPrice, li.SupplyAmount, li.VAT, li.Source)
		if err != nil {
			r.log.Error("line_items.insert.failed", "job_id", jobID, "position", i, "error", err)
			return nil, dbError("insert line item", err)
		}
		out = append(out, li)
	}
	if err := tx.Commit(); err != nil {
		return nil, dbError("commit line items", err)
	}
	r.log.Debug("line_items.replaced", "job_id", jobID, "source", source, "count", len(out))
	return out, nil
}

func (r *lineItemRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.LineItem, error) {
	return r.ListAll(ctx, []uuid.UUID{jobID})
}

func (r *lineItemRepo) ListAll(ctx context.Context, jobIDs []uuid.UUID) ([]*entity.LineItem, error) {
	query := `SELECT li.id, li.job_id, li.position, li.item, li.specification, li.quantity, li.unit_price,
		li.supply_amount, li.vat, li.source, j.filename
		FROM line_items li JOIN extract_jobs j ON j.id = li.job_id`
	args := make([]any, 0, len(jobIDs))
	if len(jobIDs) > 0 {
		marks := make([]string, len(jobIDs))
		for i, id := range jobIDs {
			marks[i] = "?"
			args = append(args, id.String())
		}
		query += ` WHERE li.job_id IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY j.started_at, li.job_id, li.position`

	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		r.log.Error("line_items.list.failed", "jobs", len(jobIDs), "error", err)
		return nil, dbError("list line items", err)
	}
	defer rows.Close()

	out := []*entity.LineItem{}
	for rows.Next() {
		var (
			li          entity.LineItem
			id, jobID   string
			spec        sql.NullString
			qty, supply sql.NullInt64
		)
		if err := rows.Scan(&id, &jobID, &li.Position, &li.Item, &spec, &qty, &li.UnitPrice,
			&supply, &li.VAT, &li.Source, &li.Filename); err != nil {
			return nil, dbError("scan line item", err)
		}
		if li.ID, err = uuid.Parse(id); err != nil {
			return nil, dbError("scan line item", err)
		}
		if li.JobID, err = uuid.Parse(jobID); err != nil {
			return nil, dbError("scan line item", err)
		}
		li.Specification = stringPtr(spec)
		li.Quantity = int64Ptr(qty)
		li.SupplyAmount = int64Ptr(supply)
		out = append(out, &li)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list line items", err)
	}
	return out, nil
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
