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
	assignmentTable  = "order_assignments"
	assignmentFields = "id, order_id, assigned_to, assigned_by, phase, outcome, in_progress, reason, assigned_at, started_at, completed_at"
)

type AssignmentRepositoryInterface interface {
	Create(ctx context.Context, tx pgx.Tx, a *entities.Assignment) error
	// FindActive - назначение в ASSIGNED для заказа и этапа, ErrNotFound если нет.
	FindActive(ctx context.Context, tx pgx.Tx, orderID string, phase constants.AssignmentPhase) (*entities.Assignment, error)
	// FindLatest - последнее незаменённое назначение этапа.
	FindLatest(ctx context.Context, tx pgx.Tx, orderID string, phase constants.AssignmentPhase) (*entities.Assignment, error)
	FindByOrderID(ctx context.Context, orderID string) ([]entities.Assignment, error)
	// Update сохраняет изменения, только если outcome в БД равен expected.
	Update(ctx context.Context, tx pgx.Tx, a *entities.Assignment, expected constants.AssignmentOutcome) error
	// HasOtherInProgress - у водителя есть начатый этап того же типа по другому заказу.
	HasOtherInProgress(ctx context.Context, tx pgx.Tx, driverID uint64, phase constants.AssignmentPhase, excludeOrderID string) (bool, error)
}

type AssignmentRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewAssignmentRepository(storage *pgxpool.Pool, logger *zap.Logger) AssignmentRepositoryInterface {
	return &AssignmentRepository{storage: storage, logger: logger}
}

func (r *AssignmentRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanAssignment(row pgx.Row) (*entities.Assignment, error) {
	var a entities.Assignment
	err := row.Scan(
		&a.ID, &a.OrderID, &a.AssignedTo, &a.AssignedBy, &a.Phase, &a.Outcome,
		&a.InProgress, &a.Reason, &a.AssignedAt, &a.StartedAt, &a.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) findOne(ctx context.Context, tx pgx.Tx, op string, where sq.Sqlizer) (*entities.Assignment, error) {
	query, args, err := psql.Select(assignmentFields).From(assignmentTable).
		Where(where).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanAssignment(r.getQuerier(tx).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, readError(op, err)
	}
	return a, nil
}

func (r *AssignmentRepository) FindActive(ctx context.Context, tx pgx.Tx, orderID string, phase constants.AssignmentPhase) (*entities.Assignment, error) {
	return r.findOne(ctx, tx, "поиск активного назначения", sq.Eq{
		"order_id": orderID,
		"phase":    phase,
		"outcome":  constants.OutcomeAssigned,
	})
}

func (r *AssignmentRepository) FindLatest(ctx context.Context, tx pgx.Tx, orderID string, phase constants.AssignmentPhase) (*entities.Assignment, error) {
	return r.findOne(ctx, tx, "поиск последнего назначения", sq.And{
		sq.Eq{"order_id": orderID, "phase": phase},
		sq.NotEq{"outcome": constants.OutcomeSuperseded},
	})
}

func (r *AssignmentRepository) FindByOrderID(ctx context.Context, orderID string) ([]entities.Assignment, error) {
	query, args, err := psql.Select(assignmentFields).From(assignmentTable).
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, readError("список назначений", err)
	}
	defer rows.Close()

	result := make([]entities.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, readError("список назначений", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, readError("список назначений", err)
	}
	return result, nil
}

func (r *AssignmentRepository) Create(ctx context.Context, tx pgx.Tx, a *entities.Assignment) error {
	query, args, err := psql.Insert(assignmentTable).
		Columns("order_id", "assigned_to", "assigned_by", "phase", "outcome").
		Values(a.OrderID, a.AssignedTo, a.AssignedBy, a.Phase, a.Outcome).
		Suffix("RETURNING id, assigned_at").
		ToSql()
	if err != nil {
		return err
	}

	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&a.ID, &a.AssignedAt); err != nil {
		return writeError("создание назначения", err)
	}
	return nil
}

func (r *AssignmentRepository) Update(ctx context.Context, tx pgx.Tx, a *entities.Assignment, expected constants.AssignmentOutcome) error {
	query, args, err := psql.Update(assignmentTable).
		Set("outcome", a.Outcome).
		Set("in_progress", a.InProgress).
		Set("reason", a.Reason).
		Set("started_at", a.StartedAt).
		Set("completed_at", a.CompletedAt).
		Where(sq.Eq{"id": a.ID, "outcome": expected}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return writeError("обновление назначения", err)
	}
	return expectOneRow("обновление назначения", tag)
}

func (r *AssignmentRepository) HasOtherInProgress(ctx context.Context, tx pgx.Tx, driverID uint64, phase constants.AssignmentPhase, excludeOrderID string) (bool, error) {
	query, args, err := psql.Select("1").From(assignmentTable).
		Where(sq.Eq{
			"assigned_to": driverID,
			"phase":       phase,
			"outcome":     constants.OutcomeAssigned,
			"in_progress": true,
		}).
		Where(sq.NotEq{"order_id": excludeOrderID}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, err
	}

	var exists bool
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, readError("проверка занятости водителя", err)
	}
	return exists, nil
}
