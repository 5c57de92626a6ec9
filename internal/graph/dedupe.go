package graph

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// Dedupe drops candidates that collide on any uniqueness group of id, either
// with a persisted record or with an earlier candidate. Groups apply in
// declaration order. Survivors keep their original order.
func (g *Graph) Dedupe(id domain.EntityID, persisted, candidates []domain.Record) ([]domain.Record, int) {
	t, ok := g.templates[id]
	if !ok || len(candidates) == 0 {
		return candidates, 0
	}
	survivors := candidates
	for _, group := range t.Unique() {
		survivors = dedupeGroup(group, t.FieldType, persisted, survivors)
	}
	return survivors, len(candidates) - len(survivors)
}

type dedupeEntry struct {
	key       string
	candidate int // -1 for persisted records
}

func dedupeGroup(group []string, fieldType func(string) domain.ColumnType, persisted, candidates []domain.Record) []domain.Record {
	entries := make([]dedupeEntry, 0, len(persisted)+len(candidates))
	for _, r := range persisted {
		entries = append(entries, dedupeEntry{key: projectionKey(r, group, fieldType), candidate: -1})
	}
	for i, r := range candidates {
		entries = append(entries, dedupeEntry{key: projectionKey(r, group, fieldType), candidate: i})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	removed := make(map[int]bool)
	for i := 1; i < len(entries); i++ {
		if entries[i].key == entries[i-1].key && entries[i].candidate >= 0 {
			removed[entries[i].candidate] = true
		}
	}
	if len(removed) == 0 {
		return candidates
	}
	out := make([]domain.Record, 0, len(candidates)-len(removed))
	for i, r := range candidates {
		if !removed[i] {
			out = append(out, r)
		}
	}
	return out
}

const keySep = "\x1f"

// projectionKey renders the group's field tuple so that values read back
// from a store compare equal to freshly generated ones. Numeric text in a
// numeric column keys as the number the store would keep.
func projectionKey(r domain.Record, group []string, fieldType func(string) domain.ColumnType) string {
	parts := make([]string, len(group))
	for i, f := range group {
		parts[i] = canonical(asColumnType(fieldType(f), r[f]))
	}
	return strings.Join(parts, keySep)
}

func canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return "n:"
	case string:
		return "s:" + x
	case []byte:
		return "s:" + string(x)
	case bool:
		if x {
			return "i:1"
		}
		return "i:0"
	case int:
		return "i:" + strconv.FormatInt(int64(x), 10)
	case int8:
		return "i:" + strconv.FormatInt(int64(x), 10)
	case int16:
		return "i:" + strconv.FormatInt(int64(x), 10)
	case int32:
		return "i:" + strconv.FormatInt(int64(x), 10)
	case int64:
		return "i:" + strconv.FormatInt(x, 10)
	case uint:
		return "i:" + strconv.FormatUint(uint64(x), 10)
	case uint8:
		return "i:" + strconv.FormatUint(uint64(x), 10)
	case uint16:
		return "i:" + strconv.FormatUint(uint64(x), 10)
	case uint32:
		return "i:" + strconv.FormatUint(uint64(x), 10)
	case uint64:
		return "i:" + strconv.FormatUint(x, 10)
	case float32:
		return canonicalFloat(float64(x))
	case float64:
		return canonicalFloat(x)
	case time.Time:
		// stores persist instants as UTC RFC3339Nano text
		return "s:" + x.UTC().Format(time.RFC3339Nano)
	default:
		return "v:" + fmt.Sprint(v)
	}
}

func canonicalFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return "i:" + strconv.FormatInt(int64(f), 10)
	}
	return "f:" + strconv.FormatFloat(f, 'g', -1, 64)
}
