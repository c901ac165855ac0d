package store

import (
	"strconv"
	"strings"
	"time"
)

// dialect holds what differs between the SQLite and PostgreSQL backends.
// Queries are written once with ? placeholders.
type dialect interface {
	bind(query string) string
	timestamp(t time.Time) any
	schema() string
}

// sqliteTimeLayout is fixed width so that timestamps compare correctly as text.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

type sqliteDialect struct{}

func (sqliteDialect) bind(query string) string  { return query }
func (sqliteDialect) timestamp(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) }
func (sqliteDialect) schema() string            { return schemaSQLite }

type postgresDialect struct{}

func (postgresDialect) timestamp(t time.Time) any { return t.UTC() }
func (postgresDialect) schema() string            { return schemaPostgres }

// bind numbers the placeholders: ? becomes $1, $2, ...
func (postgresDialect) bind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

var timeLayouts = []string{
	sqliteTimeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999-07:00",
}

// parseTime reads a scanned timestamp. SQLite hands back text, PostgreSQL a
// time.Time. Anything unreadable is the zero time.
func parseTime(v any) time.Time {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case []byte:
		s = string(t)
	case string:
		s = t
	default:
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

// parseTimePtr is parseTime with nil for a missing value.
func parseTimePtr(v any) *time.Time {
	t := parseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}
