package sqlstore

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/contenttype/internal/storage"
)

// builder accumulates SQL fragments and their bind arguments
type builder struct {
	dialect Dialect
	args    []any
}

func newBuilder(d Dialect) *builder {
	return &builder{dialect: d}
}

// bind appends an argument and returns its placeholder
func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// where renders the WHERE clause of a query against table, or ""
func (b *builder) where(table string, conds []storage.Condition, props *storage.PropertyFilter) (string, error) {
	parts := make([]string, 0, len(conds)+1)

	for _, cond := range conds {
		sql, err := b.condition(cond)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}

	if !props.Empty() {
		sql, err := b.properties(table, props)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}

	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// condition converts a condition to SQL with parameterized values
func (b *builder) condition(cond storage.Condition) (string, error) {
	field, err := quote(cond.Field)
	if err != nil {
		return "", err
	}

	switch cond.Operator {
	case storage.OpEqual:
		if cond.Value == nil {
			return field + " IS NULL", nil
		}
		return fmt.Sprintf("%s = %s", field, b.bind(cond.Value)), nil

	case storage.OpNotEqual:
		if cond.Value == nil {
			return field + " IS NOT NULL", nil
		}
		return fmt.Sprintf("%s != %s", field, b.bind(cond.Value)), nil

	case storage.OpIn:
		values, err := storage.Values(cond.Value)
		if err != nil {
			return "", err
		}
		if len(values) == 0 {
			// IN with an empty list never matches
			return "1 = 0", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = b.bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", field, strings.Join(placeholders, ", ")), nil

	case storage.OpPrefix:
		pattern := escapeLike(storage.String(cond.Value)) + "%"
		return fmt.Sprintf(`LOWER(%s) LIKE LOWER(%s) ESCAPE '\'`, field, b.bind(pattern)), nil
	}

	return "", fmt.Errorf("%w: unsupported operator %s", storage.ErrInvalidQuery, cond.Operator)
}

// properties renders a property filter as EXISTS subqueries against the
// property table. This is equivalent to an INNER JOIN per matched property
// without duplicating rows of the outer table.
func (b *builder) properties(table string, props *storage.PropertyFilter) (string, error) {
	propTable, err := quote(props.Collection)
	if err != nil {
		return "", err
	}
	outer, err := quote(table)
	if err != nil {
		return "", err
	}

	groups := make([]string, 0, len(props.Groups))
	for _, group := range props.Groups {
		if len(group.Property) == 0 {
			continue
		}

		connector := " AND "
		if group.Relation == storage.RelationOr {
			connector = " OR "
		}

		matches := make([]string, 0, len(group.Property))
		for _, match := range group.Property {
			matches = append(matches, fmt.Sprintf(
				`EXISTS (SELECT 1 FROM %s p WHERE p."%s" = %s."%s" AND p."%s" = %s AND p."%s" = %s)`,
				propTable,
				storage.ColumnOwner, outer, storage.ColumnID,
				storage.ColumnName, b.bind(match.Name),
				storage.ColumnValue, b.bind(match.Value),
			))
		}
		groups = append(groups, "("+strings.Join(matches, connector)+")")
	}

	return strings.Join(groups, " AND "), nil
}

// selectSQL renders a SELECT for q against table
func (b *builder) selectSQL(table string, q storage.Query) (string, error) {
	from, err := quote(table)
	if err != nil {
		return "", err
	}

	where, err := b.where(table, q.Where, q.Properties)
	if err != nil {
		return "", err
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = storage.ColumnID
	}
	order, err := quote(orderBy)
	if err != nil {
		return "", err
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}

	sql := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s %s", from, where, order, dir)
	if paging := b.dialect.LimitOffset(q.Limit, q.Offset); paging != "" {
		sql += " " + paging
	}
	return sql, nil
}

// countSQL renders a SELECT COUNT(*) for q against table
func (b *builder) countSQL(table string, q storage.Query) (string, error) {
	from, err := quote(table)
	if err != nil {
		return "", err
	}

	where, err := b.where(table, q.Where, q.Properties)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", from, where), nil
}

// insertSQL renders an INSERT for rec; columns are sorted for stable SQL
func (b *builder) insertSQL(table string, rec storage.Record) (string, error) {
	into, err := quote(table)
	if err != nil {
		return "", err
	}

	names := sortedKeys(rec)
	if len(names) == 0 {
		return "", fmt.Errorf("%w: empty insert", storage.ErrInvalidQuery)
	}

	columns := make([]string, len(names))
	values := make([]string, len(names))
	for i, name := range names {
		col, err := quote(name)
		if err != nil {
			return "", err
		}
		columns[i] = col
		values[i] = b.bind(rec[name])
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		into, strings.Join(columns, ", "), strings.Join(values, ", ")), nil
}

// updateSQL renders an UPDATE setting patch on rows matching where
func (b *builder) updateSQL(table string, where []storage.Condition, patch storage.Record) (string, error) {
	target, err := quote(table)
	if err != nil {
		return "", err
	}

	names := sortedKeys(patch)
	sets := make([]string, len(names))
	for i, name := range names {
		col, err := quote(name)
		if err != nil {
			return "", err
		}
		sets[i] = fmt.Sprintf("%s = %s", col, b.bind(patch[name]))
	}

	clause, err := b.where(table, where, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("UPDATE %s SET %s%s", target, strings.Join(sets, ", "), clause), nil
}

// deleteSQL renders a DELETE of rows matching where
func (b *builder) deleteSQL(table string, where []storage.Condition) (string, error) {
	from, err := quote(table)
	if err != nil {
		return "", err
	}

	clause, err := b.where(table, where, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DELETE FROM %s%s", from, clause), nil
}

// escapeLike escapes LIKE wildcards so a prefix matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
