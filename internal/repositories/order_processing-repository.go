package repositories

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"laundry-delivery/internal/entities"
	"laundry-delivery/pkg/constants"
)

const (
	processingTable  = "order_processing"
	processingFields = "id, order_id, staff_id, status, reason, claimed_at, resolved_at"
)

type OrderProcessingRepositoryInterface interface {
	// Create - второй активный захват того же заказа упирается в уникальный индекс и даёт ErrConflict.
	Create(ctx context.Context, tx pgx.Tx, p *entities.OrderProcessing) error
	FindActive(ctx context.Context, tx pgx.Tx, orderID string) (*entities.OrderProcessing, error)
	// Resolve закрывает захват, только если он ещё в PROCESSING.
	Resolve(ctx context.Context, tx pgx.Tx, id uint64, status constants.ProcessingStatus, reason null.String) error
	FindExpired(ctx context.Context, claimedBefore time.Time, limit uint64) ([]entities.OrderProcessing, error)
}

type OrderProcessingRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewOrderProcessingRepository(storage *pgxpool.Pool, logger *zap.Logger) OrderProcessingRepositoryInterface {
	return &OrderProcessingRepository{storage: storage, logger: logger}
}

func (r *OrderProcessingRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanProcessing(row pgx.Row) (*entities.OrderProcessing, error) {
	var p entities.OrderProcessing
	if err := row.Scan(&p.ID, &p.OrderID, &p.StaffID, &p.Status, &p.Reason, &p.ClaimedAt, &p.ResolvedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *OrderProcessingRepository) Create(ctx context.Context, tx pgx.Tx, p *entities.OrderProcessing) error {
	query, args, err := psql.Insert(processingTable).
		Columns("order_id", "staff_id", "status").
		Values(p.OrderID, p.StaffID, p.Status).
		Suffix("RETURNING id, claimed_at").
		ToSql()
	if err != nil {
		return err
	}
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&p.ID, &p.ClaimedAt); err != nil {
		return writeError("взятие заказа в обработку", err)
	}
	return nil
}

func (r *OrderProcessingRepository) FindActive(ctx context.Context, tx pgx.Tx, orderID string) (*entities.OrderProcessing, error) {
	query, args, err := psql.Select(processingFields).From(processingTable).
		Where(sq.Eq{"order_id": orderID, "status": constants.ProcessingStatusProcessing}).
		ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanProcessing(r.getQuerier(tx).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, readError("поиск активной обработки", err)
	}
	return p, nil
}

func (r *OrderProcessingRepository) Resolve(ctx context.Context, tx pgx.Tx, id uint64, status constants.ProcessingStatus, reason null.String) error {
	query, args, err := psql.Update(processingTable).
		Set("status", status).
		Set("reason", reason).
		Set("resolved_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": constants.ProcessingStatusProcessing}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return writeError("закрытие обработки", err)
	}
	return expectOneRow("закрытие обработки", tag)
}

func (r *OrderProcessingRepository) FindExpired(ctx context.Context, claimedBefore time.Time, limit uint64) ([]entities.OrderProcessing, error) {
	query, args, err := psql.Select(processingFields).From(processingTable).
		Where(sq.Eq{"status": constants.ProcessingStatusProcessing}).
		Where(sq.Lt{"claimed_at": claimedBefore}).
		OrderBy("claimed_at ASC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, readError("поиск просроченных обработок", err)
	}
	defer rows.Close()

	var result []entities.OrderProcessing
	for rows.Next() {
		p, err := scanProcessing(rows)
		if err != nil {
			return nil, readError("поиск просроченных обработок", err)
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}
