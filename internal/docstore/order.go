package docstore

import (
	"sort"
	"strings"
)

// Apply sorts snaps by q.OrderBy (document id when empty) and truncates to
// q.Limit. Ties break on document id so results are stable.
func Apply(snaps []Snapshot, q Query) []Snapshot {
	sort.SliceStable(snaps, func(i, j int) bool {
		c := 0
		if q.OrderBy != "" {
			c = compare(snaps[i].Fields[q.OrderBy], snaps[j].Fields[q.OrderBy])
		}
		if c == 0 {
			c = strings.Compare(snaps[i].ID, snaps[j].ID)
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})
	if q.Limit > 0 && len(snaps) > q.Limit {
		snaps = snaps[:q.Limit]
	}
	return snaps
}

// compare orders field values: missing < bool < number < time < string.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case 2:
		fa, fb := number(a), number(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		ta, _ := Time(a)
		tb, _ := Time(b)
		return ta.Compare(tb)
	case 4:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case string:
		if _, ok := Time(v); ok {
			return 3
		}
		return 4
	}
	if _, ok := Time(v); ok {
		return 3
	}
	return 0
}

func number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
