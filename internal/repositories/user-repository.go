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
	userTable  = "users"
	userFields = "id, fio, phone_number, role, created_at"
)

type UserRepositoryInterface interface {
	FindUserByID(ctx context.Context, id uint64) (*entities.User, error)
	GetRole(ctx context.Context, id uint64) (constants.Role, error)
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	if err := row.Scan(&user.ID, &user.Fio, &user.PhoneNumber, &user.Role, &user.CreatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindUserByID(ctx context.Context, id uint64) (*entities.User, error) {
	query, args, err := psql.Select(userFields).From(userTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	user, err := scanUser(r.storage.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, readError("поиск пользователя", err)
	}
	return user, nil
}

func (r *UserRepository) GetRole(ctx context.Context, id uint64) (constants.Role, error) {
	query, args, err := psql.Select("role").From(userTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return "", err
	}
	var role constants.Role
	if err := r.storage.QueryRow(ctx, query, args...).Scan(&role); err != nil {
		return "", readError("роль пользователя", err)
	}
	return role, nil
}
