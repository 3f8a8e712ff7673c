package postgres

import (
	"fmt"
	"strings"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

// sortColumns maps sort keys to board columns.
var sortColumns = map[string]string{
	recruit.SortCreatedAt: "b.created_at",
	recruit.SortEndDay:    "b.end_date",
	recruit.SortHit:       "b.hit",
	recruit.SortTitle:     "b.title",
}

// counterColumns whitelists the columns IncrementCounter may touch.
var counterColumns = map[recruit.CounterField]string{
	recruit.FieldApplicationCnt: "application_cnt",
	recruit.FieldAcceptCnt:      "accept_cnt",
	recruit.FieldHit:            "hit",
}

// args accumulates positional parameters.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// boardWhere builds the WHERE clause shared by the board list and its count.
func boardWhere(f recruit.BoardFilter) (string, args) {
	var a args
	conds := []string{"b.active", "NOT b.is_completed"}

	now := a.add(f.Now)
	if f.ViewerID != "" {
		conds = append(conds, fmt.Sprintf("(b.end_date > %s OR b.author_id = %s)", now, a.add(f.ViewerID)))
	} else {
		conds = append(conds, "b.end_date > "+now)
	}
	if f.Kind != "" && f.Kind != recruit.KindAll {
		conds = append(conds, "b.kind = "+a.add(string(f.Kind)))
	}
	if f.Category != "" {
		conds = append(conds, "b.category = "+a.add(string(f.Category)))
	}
	if f.SearchText != "" {
		p := a.add("%" + escapeLike(f.SearchText) + "%")
		conds = append(conds, fmt.Sprintf("(b.title ILIKE %[1]s OR b.content ILIKE %[1]s OR b.topic ILIKE %[1]s)", p))
	}
	return "WHERE " + strings.Join(conds, " AND "), a
}

// orderBy renders an OrderSpec. Unknown fields are skipped; an empty result
// falls back to newest first.
func orderBy(o recruit.OrderSpec, columns map[string]string, fallback string) string {
	parts := make([]string, 0, len(o))
	for _, k := range o {
		col, ok := columns[k.Field]
		if !ok {
			continue
		}
		if k.Desc {
			col += " DESC"
		} else {
			col += " ASC"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return "ORDER BY " + fallback
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// limitOffset renders paging; Limit 0 means unbounded.
func limitOffset(p recruit.Page, a *args) string {
	var sb strings.Builder
	if p.Limit > 0 {
		sb.WriteString(" LIMIT " + a.add(p.Limit))
	}
	if p.Skip > 0 {
		sb.WriteString(" OFFSET " + a.add(p.Skip))
	}
	return sb.String()
}

// applicationWhere builds the WHERE clause for application listings. The kind
// filter is resolved through the JOIN on boards rather than a second query.
func applicationWhere(f recruit.ApplicationFilter) (string, args) {
	var a args
	conds := []string{"TRUE"}
	if f.ApplicantID != "" {
		conds = append(conds, "a.applicant_id = "+a.add(f.ApplicantID))
	}
	if f.AuthorID != "" {
		conds = append(conds, "a.author_id = "+a.add(f.AuthorID))
	}
	if f.BoardID != "" {
		conds = append(conds, "a.board_id = "+a.add(f.BoardID))
	}
	if f.IsAccepted != nil {
		conds = append(conds, "a.is_accepted = "+a.add(*f.IsAccepted))
	}
	if f.Active != nil {
		conds = append(conds, "a.active = "+a.add(*f.Active))
	}
	if f.Kind != "" && f.Kind != recruit.KindAll {
		conds = append(conds, "b.kind = "+a.add(string(f.Kind)))
	}
	return "WHERE " + strings.Join(conds, " AND "), a
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
