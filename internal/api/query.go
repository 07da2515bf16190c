package api

import (
	"net/url"
	"strconv"
	"strings"

	"tross/internal/repo"
)

// parseListParams — limit/offset/sort + фильтры-равенства из query.
// Служебные ключи (_limit и т.п.) в фильтры не попадают.
func parseListParams(q url.Values) repo.ListParams {
	limit := 50
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			limit = n
		}
	}

	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}

	var sortKeys []repo.SortKey
	sv := strings.TrimSpace(q.Get("_sort"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("sort"))
	}
	if sv != "" {
		for _, p := range strings.Split(sv, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			desc := false
			if strings.HasPrefix(p, "-") {
				desc = true
				p = strings.TrimPrefix(p, "-")
			} else {
				p = strings.TrimPrefix(p, "+")
			}
			if p != "" {
				sortKeys = append(sortKeys, repo.SortKey{Field: p, Desc: desc})
			}
		}
	}

	filters := make(map[string]string)
	for key, vals := range q {
		switch key {
		case "q", "offset", "limit", "sort", "order",
			"_offset", "_limit", "_sort", "_order":
			continue
		}
		if len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
			continue
		}
		filters[key] = vals[0]
	}

	return repo.ListParams{
		Limit:   limit,
		Offset:  offset,
		Sort:    sortKeys,
		Filters: filters,
	}
}
