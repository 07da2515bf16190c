package meta

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadEntities читает один YAML-файл. В файле может быть несколько
// документов (--- между сущностями).
func LoadEntities(path string) ([]*Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entities []*Entity
	dec := yaml.NewDecoder(f)
	for {
		var e Entity
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		// пустой документ (только комментарии) — пропускаем
		if e.Name == "" && len(e.Fields) == 0 {
			continue
		}
		normalizeEntity(&e)
		entities = append(entities, &e)
	}
	return entities, nil
}

// LoadAllEntities обходит каталог и собирает все *.yaml/*.yml определения.
// Дубликат имени сущности — ошибка конфигурации.
func LoadAllEntities(root string) (*Registry, error) {
	byName := make(map[string]*Entity)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		ents, err := LoadEntities(path)
		if err != nil {
			return err
		}
		for _, e := range ents {
			if e.Name == "" {
				return fmt.Errorf("entity without a name in %s", path)
			}
			key := strings.ToLower(e.Name)
			if _, exists := byName[key]; exists {
				return fmt.Errorf("duplicate entity %q (file: %s)", e.Name, path)
			}
			byName[key] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(byName) == 0 {
		return nil, fmt.Errorf("no entity definitions under %s", root)
	}

	all := make([]*Entity, 0, len(byName))
	for _, e := range byName {
		all = append(all, e)
	}
	return NewRegistry(all), nil
}

func normalizeEntity(e *Entity) {
	e.Name = strings.ToLower(strings.TrimSpace(e.Name))
	if e.Table == "" {
		e.Table = plural(e.Name)
	}
	e.Table = strings.ToLower(strings.TrimSpace(e.Table))
	if e.Fields == nil {
		e.Fields = map[string]FieldDef{}
	}
	if e.FieldAccess == nil {
		e.FieldAccess = map[string]FieldAccess{}
	}
}

// элементарная плюрализация; достаточно для users, invoices, ...
func plural(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}
