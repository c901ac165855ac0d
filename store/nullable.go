package store

import "time"

// Scanned column values differ by driver: SQLite yields int64, float64,
// string or []byte; Postgres adds bool and time.Time. These helpers map a
// value scanned into `any` onto an optional Go field.

func anyString(v any) *string {
	switch x := v.(type) {
	case string:
		return &x
	case []byte:
		s := string(x)
		return &s
	}
	return nil
}

func anyInt(v any) *int64 {
	switch x := v.(type) {
	case int64:
		return &x
	case float64:
		n := int64(x)
		return &n
	case bool:
		var n int64
		if x {
			n = 1
		}
		return &n
	}
	return nil
}

func anyFloat(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case int64:
		f := float64(x)
		return &f
	}
	return nil
}

func anyBool(v any) *bool {
	switch x := v.(type) {
	case bool:
		return &x
	case int64:
		b := x != 0
		return &b
	}
	return nil
}

// assignScanned stores a scanned value into the optional field dst points at.
func assignScanned(dst any, v any) {
	switch d := dst.(type) {
	case **string:
		*d = anyString(v)
	case **int64:
		*d = anyInt(v)
	case **float64:
		*d = anyFloat(v)
	case **bool:
		*d = anyBool(v)
	case **time.Time:
		*d = parseTimePtr(v)
	}
}

// optionalValue dereferences an optional field for use as a query argument.
// ok is false when the field is unset.
func (db *DB) optionalValue(src any) (any, bool) {
	switch s := src.(type) {
	case **string:
		if *s != nil {
			return **s, true
		}
	case **int64:
		if *s != nil {
			return **s, true
		}
	case **float64:
		if *s != nil {
			return **s, true
		}
	case **bool:
		if *s != nil {
			return **s, true
		}
	case **time.Time:
		if *s != nil {
			return db.ts(**s), true
		}
	}
	return nil, false
}

// optInt and optFloat pass an optional field as a query argument.
func optInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
