package main

import (
	"context"
	"flag"
	"log"

	"laundry-delivery/pkg/config"
	"laundry-delivery/pkg/database/postgresql"
	"laundry-delivery/seeders"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runMigrate := flag.Bool("migrate", false, "Применить миграции")
	runUsers := flag.Bool("users", false, "Создать служебных пользователей (админ, оператор, водители, клиент)")
	runAll := flag.Bool("all", false, "Запустить всё (эквивалентно -migrate -users)")

	flag.Parse()

	if !*runMigrate && !*runUsers && !*runAll {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -migrate")
		log.Println("  go run ./seeders/cmd/seed -all")
		log.Println("======================================================")
		return
	}

	ctx := context.Background()
	cfg := config.New()
	dbPool := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbPool.Close()

	if *runAll || *runMigrate {
		if err := postgresql.Migrate(ctx, dbPool); err != nil {
			log.Fatalf("❌ Ошибка миграций: %v", err)
		}
		log.Println("✅ Миграции применены")
	}

	if *runAll || *runUsers {
		if err := seeders.SeedUsers(ctx, dbPool); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}

	log.Println("✅ Все указанные операции сидирования успешно завершены.")
	log.Println("======================================================")
}
