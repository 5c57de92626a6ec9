package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/mmrzaf/bondgen/internal/domain"
)

// HashSchema fingerprints everything in a schema that affects the graph or
// the records generated from it.
func HashSchema(schema *domain.Schema) (string, error) {
	canonical := canonicalizeSchema(schema)
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func canonicalizeSchema(schema *domain.Schema) map[string]interface{} {
	entities := make([]map[string]interface{}, len(schema.Entities))
	for i, entity := range schema.Entities {
		fields := make([]map[string]interface{}, len(entity.Fields))
		for j, f := range entity.Fields {
			fieldMap := map[string]interface{}{
				"name":      f.Name,
				"type":      f.Type,
				"generator": canonicalizeGeneratorSpec(f.Generator),
			}
			if f.Rule != nil {
				fieldMap["rule"] = canonicalizeRule(*f.Rule)
			}
			fields[j] = fieldMap
		}

		entityMap := map[string]interface{}{
			"name":   entity.Name,
			"table":  entity.TableName(),
			"fields": fields,
		}
		if len(entity.Unique) > 0 {
			entityMap["unique"] = entity.Unique
		}
		if len(entity.Bonds) > 0 {
			bonds := make(map[string]interface{}, len(entity.Bonds))
			for field, b := range entity.Bonds {
				bonds[field] = map[string]interface{}{"entity": b.Entity, "field": b.Field}
			}
			entityMap["bonds"] = bonds
		}
		if entity.RecordRule != nil {
			entityMap["rule"] = canonicalizeRule(*entity.RecordRule)
		}
		entities[i] = entityMap
	}

	result := map[string]interface{}{
		"name":     schema.Name,
		"entities": entities,
	}
	if schema.ID != "" {
		result["id"] = schema.ID
	}
	if schema.Version != "" {
		result["version"] = schema.Version
	}

	return result
}

func canonicalizeGeneratorSpec(spec domain.GeneratorSpec) map[string]interface{} {
	result := map[string]interface{}{
		"type": spec.Type,
	}
	if len(spec.Params) > 0 {
		result["params"] = canonicalizeParams(spec.Params)
	}
	if spec.Optional {
		result["optional"] = true
	}
	if spec.Nullable {
		result["nullable"] = true
	}
	if spec.EmptyChance != nil {
		result["empty_chance"] = *spec.EmptyChance
	}
	if spec.EmptyValue != nil {
		result["empty_value"] = spec.EmptyValue
	}
	if spec.Pattern != "" {
		result["pattern"] = spec.Pattern
	}
	if spec.Coerce != "" {
		result["coerce"] = spec.Coerce
	}
	return result
}

func canonicalizeRule(r domain.RuleSpec) map[string]interface{} {
	result := map[string]interface{}{"op": r.Op}
	if r.Field != "" {
		result["field"] = r.Field
	}
	if r.Other != "" {
		result["other"] = r.Other
	}
	if r.Value != nil {
		result["value"] = r.Value
	}
	if len(r.Values) > 0 {
		result["values"] = r.Values
	}
	return result
}

func canonicalizeParams(params map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := params[k]
		switch val := v.(type) {
		case map[string]interface{}:
			result[k] = canonicalizeParams(val)
		case []interface{}:
			result[k] = canonicalizeList(val)
		default:
			result[k] = val
		}
	}
	return result
}

// canonicalizeList descends into nested generator specs, e.g. concat parts.
func canonicalizeList(list []interface{}) []interface{} {
	out := make([]interface{}, len(list))
	for i, v := range list {
		if m, ok := v.(map[string]interface{}); ok {
			out[i] = canonicalizeParams(m)
			continue
		}
		out[i] = v
	}
	return out
}
