package meta

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tross/internal/apperr"
)

// Issue — одно противоречие в метаданных. Любое issue на старте фатально.
type Issue struct {
	Entity  string `json:"entity"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint проверяет реестр на базовые противоречия. roleExists — проверка
// имени роли против загруженной иерархии.
func Lint(r *Registry, roleExists func(string) bool) []Issue {
	var issues []Issue

	add := func(entity, field, code, msg string) {
		issues = append(issues, Issue{Entity: entity, Field: field, Code: code, Message: msg})
	}

	for _, e := range r.All() {
		if e.Table == "" {
			add(e.Name, "", "table_empty", "entity has no table name")
		}

		names := e.FieldNames()
		for _, name := range names {
			f := e.Fields[name]

			if _, known := KnownTypes[f.Type]; !known {
				add(e.Name, name, "type_unknown",
					fmt.Sprintf("unknown field type %q", f.Type))
			}
			if f.Type == TypeEnum && len(f.Values) == 0 {
				add(e.Name, name, "enum_without_values", "enum field has no values")
			}
			if f.Pattern != "" {
				if _, err := regexp.Compile(f.Pattern); err != nil {
					add(e.Name, name, "pattern_invalid",
						fmt.Sprintf("pattern does not compile: %v", err))
				}
			}
			if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
				add(e.Name, name, "length_range_invalid", "min_length exceeds max_length")
			}
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				add(e.Name, name, "range_invalid", "min exceeds max")
			}
		}

		// field_access: только известные поля и роли
		accessNames := make([]string, 0, len(e.FieldAccess))
		for n := range e.FieldAccess {
			accessNames = append(accessNames, n)
		}
		sort.Strings(accessNames)
		for _, name := range accessNames {
			if _, ok := e.Fields[name]; !ok && !IsSystemField(name) {
				add(e.Name, name, "access_unknown_field", "field_access entry for unknown field")
			}
			fa := e.FieldAccess[name]
			for _, req := range []string{fa.Create, fa.Read, fa.Update, fa.Delete} {
				req = strings.TrimSpace(req)
				if req == "" || req == RoleNone || req == RoleMinimum {
					continue
				}
				if !roleExists(req) {
					add(e.Name, name, "access_unknown_role",
						fmt.Sprintf("role %q is not in the hierarchy", req))
				}
			}
		}

		// каждое записываемое поле обязано присутствовать в field_access;
		// отсутствие — deny-by-default, но для required-полей это тупик
		merged := e.MergedAccess()
		for _, name := range e.RequiredFields {
			if _, ok := e.Fields[name]; !ok {
				add(e.Name, name, "required_unknown_field", "required field is not defined")
				continue
			}
			fa, ok := merged[name]
			if !ok || fa.Create == RoleNone {
				add(e.Name, name, "required_not_creatable",
					"required field cannot be created by any role")
			}
		}

		for _, name := range e.ImmutableFields {
			if _, ok := e.Fields[name]; !ok && !IsSystemField(name) {
				add(e.Name, name, "immutable_unknown_field", "immutable field is not defined")
			}
		}

		for name := range e.ForeignKeys {
			if _, ok := e.Fields[name]; !ok {
				add(e.Name, name, "fk_unknown_field", "foreign_keys entry for unknown field")
			}
		}

		if e.Identifier != nil {
			if strings.TrimSpace(e.Identifier.Prefix) == "" {
				add(e.Name, "", "identifier_prefix_empty", "identifier config has no prefix")
			}
			if strings.TrimSpace(e.Identifier.Field) == "" {
				add(e.Name, "", "identifier_field_empty", "identifier config has no field")
			} else if e.Identifier.Field != e.IdentityField {
				if _, ok := e.Fields[e.Identifier.Field]; !ok {
					add(e.Name, e.Identifier.Field, "identifier_unknown_field",
						"identifier field is not defined")
				}
			}
		}
	}

	return issues
}

// MustLint — вариант для старта процесса: любое issue превращается в
// ConfigurationError.
func MustLint(r *Registry, roleExists func(string) bool) error {
	issues := Lint(r, roleExists)
	if len(issues) == 0 {
		return nil
	}
	parts := make([]string, 0, len(issues))
	for _, it := range issues {
		p := it.Entity
		if it.Field != "" {
			p += "." + it.Field
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", p, it.Message, it.Code))
	}
	return apperr.Config("metadata lint failed: %s", strings.Join(parts, "; "))
}
