package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"laundry-delivery/internal/entities"
)

type OrderHistoryRepositoryInterface interface {
	// CreateInTx добавляет запись и фото к ней в рамках транзакции перехода.
	CreateInTx(ctx context.Context, tx pgx.Tx, history *entities.OrderHistory) error
	// FindByOrderID возвращает журнал в порядке добавления.
	FindByOrderID(ctx context.Context, orderID string) ([]entities.OrderHistory, error)
}

type OrderHistoryRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewOrderHistoryRepository(storage *pgxpool.Pool, logger *zap.Logger) OrderHistoryRepositoryInterface {
	return &OrderHistoryRepository{storage: storage, logger: logger}
}

func (r *OrderHistoryRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *OrderHistoryRepository) CreateInTx(ctx context.Context, tx pgx.Tx, h *entities.OrderHistory) error {
	q := r.getQuerier(tx)

	query, args, err := psql.Insert("order_history").
		Columns("order_id", "status", "notes", "is_fail", "actor_id").
		Values(h.OrderID, h.Status, h.Notes, h.IsFail, h.ActorID).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return err
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&h.ID, &h.CreatedAt); err != nil {
		return writeError("запись истории заказа", err)
	}

	if len(h.PhotoURLs) == 0 {
		return nil
	}

	photos := psql.Insert("order_photos").Columns("order_id", "history_id", "url")
	for _, url := range h.PhotoURLs {
		photos = photos.Values(h.OrderID, h.ID, url)
	}
	query, args, err = photos.ToSql()
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return writeError("сохранение фото к истории", err)
	}
	return nil
}

func (r *OrderHistoryRepository) FindByOrderID(ctx context.Context, orderID string) ([]entities.OrderHistory, error) {
	query := `
		SELECT
			h.id, h.order_id, h.status, h.notes, h.is_fail, h.actor_id, h.created_at,
			COALESCE(array_agg(p.url ORDER BY p.id) FILTER (WHERE p.url IS NOT NULL), '{}') AS photo_urls
		FROM order_history h
		LEFT JOIN order_photos p ON p.history_id = h.id
		WHERE h.order_id = $1
		GROUP BY h.id
		ORDER BY h.id ASC
	`

	rows, err := r.storage.Query(ctx, query, orderID)
	if err != nil {
		return nil, readError("чтение истории заказа", err)
	}
	defer rows.Close()

	history := make([]entities.OrderHistory, 0)
	for rows.Next() {
		var h entities.OrderHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Notes, &h.IsFail, &h.ActorID, &h.CreatedAt, &h.PhotoURLs); err != nil {
			return nil, readError("чтение истории заказа", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, readError("чтение истории заказа", err)
	}
	return history, nil
}
