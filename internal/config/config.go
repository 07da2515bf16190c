package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string `json:"port"`
	MetaDir     string `json:"metaDir"`     // каталог с определениями сущностей (*.yaml)
	RolesSeed   string `json:"rolesSeed"`   // YAML с исходной иерархией ролей
	DBURL       string `json:"dbUrl"`
	AutoMigrate bool   `json:"autoMigrate"`
}

func def() Config {
	return Config{
		Port:        "8080",
		MetaDir:     "meta/entities",
		RolesSeed:   "meta/roles.yaml",
		DBURL:       "",
		AutoMigrate: false,
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("TROSS_PORT", cfg.Port)
	cfg.MetaDir = getenv("TROSS_META_DIR", cfg.MetaDir)
	cfg.RolesSeed = getenv("TROSS_ROLES_SEED", cfg.RolesSeed)
	cfg.DBURL = getenv("TROSS_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("TROSS_AUTO_MIGRATE", cfg.AutoMigrate)

	// Flags overrides
	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	metaDir := flag.String("meta", cfg.MetaDir, "Path to entity metadata directory")
	rolesSeed := flag.String("roles", cfg.RolesSeed, "Path to roles seed YAML")
	db := flag.String("db", cfg.DBURL, "Postgres URL")
	auto := flag.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Apply idempotent DDL on start (true/false)")

	flag.Parse()

	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.MetaDir = strings.TrimSpace(*metaDir)
	cfg.RolesSeed = strings.TrimSpace(*rolesSeed)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.AutoMigrate = strings.EqualFold(strings.TrimSpace(*auto), "true") ||
		strings.EqualFold(strings.TrimSpace(*auto), "1") ||
		strings.EqualFold(strings.TrimSpace(*auto), "yes")

	return cfg
}
