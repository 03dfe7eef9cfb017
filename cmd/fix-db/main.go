package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Утилита обслуживания схемы: чинит dirty-состояние golang-migrate
// и прогоняет миграции вручную, минуя запуск API.
//
// Использование:
//
//	fix-db version          - показать текущую версию и dirty-флаг
//	fix-db up               - применить все миграции
//	fix-db down             - откатить одну миграцию
//	fix-db force <version>  - принудительно выставить версию (сброс dirty)
//
// Подключение берется из тех же переменных окружения, что и у API:
// DATABASE_HOST, DATABASE_PORT, DATABASE_USER, DATABASE_PASSWORD,
// DATABASE_DBNAME, DATABASE_SSLMODE.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: fix-db <version|up|down|force N>")
	}

	m, err := newMigrator()
	if err != nil {
		log.Fatalf("Не удалось инициализировать мигратор: %v", err)
	}

	switch os.Args[1] {
	case "version":
		version, dirty, err := m.Version()
		if err == migrate.ErrNilVersion {
			fmt.Println("Миграции еще не применялись")
			return
		}
		if err != nil {
			log.Fatalf("Не удалось прочитать версию: %v", err)
		}
		fmt.Printf("Версия схемы: %d, dirty: %t\n", version, dirty)

	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Миграция вверх не удалась: %v", err)
		}
		fmt.Println("Схема актуальна")

	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Откат миграции не удался: %v", err)
		}
		fmt.Println("Откатили одну миграцию")

	case "force":
		if len(os.Args) < 3 {
			log.Fatal("usage: fix-db force <version>")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("Некорректная версия %q: %v", os.Args[2], err)
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("Force не удался: %v", err)
		}
		fmt.Printf("Версия принудительно выставлена в %d, dirty-флаг снят\n", version)

	default:
		log.Fatalf("Неизвестная команда %q", os.Args[1])
	}
}

func newMigrator() (*migrate.Migrate, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		envOr("DATABASE_HOST", "localhost"),
		envOr("DATABASE_PORT", "5432"),
		envOr("DATABASE_USER", "postgres"),
		os.Getenv("DATABASE_PASSWORD"),
		envOr("DATABASE_DBNAME", "quiznight_db"),
		envOr("DATABASE_SSLMODE", "disable"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("init postgres driver: %w", err)
	}
	return migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
