package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedUsers создаёт пользователей из usersData. Существующие номера пропускаются.
func SeedUsers(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("▶️  Запуск наполнения пользователей...")

	for _, u := range usersData {
		tag, err := db.Exec(ctx,
			`INSERT INTO users (fio, phone_number, role) VALUES ($1, $2, $3)
			 ON CONFLICT (phone_number) DO NOTHING`,
			u.Fio, u.PhoneNumber, string(u.Role),
		)
		if err != nil {
			return fmt.Errorf("ошибка создания пользователя %s: %w", u.PhoneNumber, err)
		}
		if tag.RowsAffected() == 0 {
			log.Printf("    - Пользователь %s уже существует. Пропускаем.", u.PhoneNumber)
			continue
		}
		log.Printf("    - Создан пользователь %s (%s)", u.Fio, u.Role)
	}

	log.Println("✅ Наполнение пользователей завершено!")
	return nil
}
