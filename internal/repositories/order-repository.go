package repositories

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"laundry-delivery/internal/entities"
	"laundry-delivery/pkg/constants"
)

const (
	orderTable  = "orders"
	orderFields = "id, owner_id, pickup_address, pickup_lat, pickup_lng, delivery_address, delivery_lat, delivery_lng, status, emergency, version, created_at, updated_at"
)

type OrderRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id string) (*entities.Order, error)
	Create(ctx context.Context, tx pgx.Tx, order *entities.Order) error
	// UpdateStatus меняет статус только если в БД всё ещё expected и version, иначе ErrConflict.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, version int64, expected, next constants.OrderStatus) error
}

type OrderRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewOrderRepository(storage *pgxpool.Pool, logger *zap.Logger) OrderRepositoryInterface {
	return &OrderRepository{storage: storage, logger: logger}
}

func (r *OrderRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *OrderRepository) FindByID(ctx context.Context, tx pgx.Tx, id string) (*entities.Order, error) {
	query, args, err := psql.Select(orderFields).From(orderTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var o entities.Order
	err = r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(
		&o.ID, &o.OwnerID,
		&o.PickupAddress, &o.PickupLat, &o.PickupLng,
		&o.DeliveryAddress, &o.DeliveryLat, &o.DeliveryLng,
		&o.Status, &o.Emergency, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, readError("поиск заказа "+id, err)
	}
	return &o, nil
}

func (r *OrderRepository) Create(ctx context.Context, tx pgx.Tx, o *entities.Order) error {
	query, args, err := psql.Insert(orderTable).
		Columns("id", "owner_id", "pickup_address", "pickup_lat", "pickup_lng",
			"delivery_address", "delivery_lat", "delivery_lng", "status", "emergency").
		Values(o.ID, o.OwnerID, o.PickupAddress, o.PickupLat, o.PickupLng,
			o.DeliveryAddress, o.DeliveryLat, o.DeliveryLng, o.Status, o.Emergency).
		Suffix("RETURNING version, created_at, updated_at").
		ToSql()
	if err != nil {
		return err
	}

	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return writeError("создание заказа", err)
	}
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, version int64, expected, next constants.OrderStatus) error {
	query, args, err := psql.Update(orderTable).
		Set("status", next).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": expected, "version": version}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return writeError("смена статуса заказа", err)
	}
	if err := expectOneRow("смена статуса заказа "+id, tag); err != nil {
		r.logger.Warn("статус заказа уже изменён другим запросом",
			zap.String("orderID", id),
			zap.String("expected", expected.String()),
			zap.Int64("version", version),
			zap.String("next", next.String()),
		)
		return err
	}
	return nil
}
