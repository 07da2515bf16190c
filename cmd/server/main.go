package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"tross/internal/access"
	"tross/internal/api"
	"tross/internal/audit"
	"tross/internal/config"
	"tross/internal/identifier"
	"tross/internal/meta"
	"tross/internal/pg"
	"tross/internal/repo"
	"tross/internal/roles"
	"tross/internal/validation"
)

func main() {
	cfg := config.LoadWithPath("config.json")

	// 1. Загружаем метаданные сущностей (YAML-каталог)
	registry, err := meta.LoadAllEntities(cfg.MetaDir)
	if err != nil {
		log.Fatalf("Ошибка загрузки метаданных: %v", err)
	}
	fmt.Printf("Загружено сущностей: %d\n", registry.Len())

	// 2. База данных
	if cfg.DBURL == "" {
		log.Fatalf("Не задан адрес базы данных (TROSS_DB_URL / -db)")
	}
	db, err := pg.Open(cfg.DBURL)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе: %v", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		ddl, err := pg.GenerateDDL(registry)
		if err != nil {
			log.Fatalf("Ошибка генерации DDL: %v", err)
		}
		if err := pg.ApplyDDL(db, ddl); err != nil {
			log.Fatalf("Ошибка применения DDL: %v", err)
		}
		fmt.Println("DDL применён")
	}

	// 3. Роли: seed из YAML (idempotent), затем чтение иерархии из базы
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seed, err := roles.LoadSeed(cfg.RolesSeed)
	if err != nil {
		log.Fatalf("Ошибка чтения seed-ролей: %v", err)
	}
	if err := roles.Seed(ctx, db, seed); err != nil {
		log.Fatalf("Ошибка наполнения таблицы ролей: %v", err)
	}
	list, err := roles.LoadFromDB(ctx, db)
	if err != nil {
		log.Fatalf("Ошибка чтения ролей из базы: %v", err)
	}
	hierarchy, err := roles.NewHierarchy(list)
	if err != nil {
		log.Fatalf("Ошибка построения иерархии ролей: %v", err)
	}
	fmt.Printf("Иерархия ролей: %s\n", hierarchy)

	// 4. Линт метаданных против иерархии — любое противоречие фатально
	if err := meta.MustLint(registry, func(name string) bool {
		return hierarchy.Rank(name) >= 0
	}); err != nil {
		log.Fatalf("Метаданные не прошли проверку: %v", err)
	}

	// 5. Сборка сервисов
	ac := access.NewController(hierarchy)
	srv := &api.Server{
		Registry:  registry,
		Hierarchy: hierarchy,
		Access:    ac,
		Schemas:   validation.NewBuilder(hierarchy, ac),
		Store:     repo.NewStore(db),
		IDs:       identifier.New(&identifier.PGStore{DB: db}),
		Audit:     audit.LogEmitter{},
		DB:        db,
	}

	fmt.Printf("Стартуем сервер Tross на :%s...\n", cfg.Port)
	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Сервер завершился с ошибкой: %v", err)
	}
}
