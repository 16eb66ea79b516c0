package filterexpr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

type orderParams struct {
	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

type orderTerm struct {
	key  string
	desc bool
}

// parseOrderBy accepts up to two comma separated `key [asc|desc]` terms.
// Missing terms fall back to the schema defaults.
func parseOrderBy(raw string, schema OrderSchema) (orderParams, error) {
	if err := checkOrderSchema(schema); err != nil {
		return orderParams{}, err
	}

	var terms []orderTerm
	for _, seg := range strings.Split(raw, ",") {
		parts := strings.Fields(seg)
		if len(parts) == 0 {
			continue
		}
		term, err := parseOrderTerm(parts, schema)
		if err != nil {
			return orderParams{}, err
		}
		for _, seen := range terms {
			if seen.key == term.key {
				return orderParams{}, invalidf("duplicate order key %q", term.key)
			}
		}
		terms = append(terms, term)
	}
	if len(terms) > 2 {
		return orderParams{}, invalidf("order_by supports at most two keys")
	}

	primary := orderTerm{key: schema.DefaultPrimary, desc: schema.DefaultPrimaryDesc}
	secondary := orderTerm{key: schema.FallbackKey, desc: schema.FallbackDesc}
	if len(terms) > 0 {
		primary = terms[0]
	}
	if len(terms) > 1 {
		secondary = terms[1]
	}
	if secondary.key == primary.key {
		// The fallback key is already primary; keep it as the only order term.
		secondary = orderTerm{}
	}

	return orderParams{
		PrimaryKey:    primary.key,
		PrimaryDesc:   primary.desc,
		SecondaryKey:  secondary.key,
		SecondaryDesc: secondary.desc,
	}, nil
}

func checkOrderSchema(schema OrderSchema) error {
	if schema.DefaultPrimary == "" || schema.FallbackKey == "" {
		return errors.New("order schema requires a default primary and a fallback key")
	}
	for _, key := range []string{schema.DefaultPrimary, schema.FallbackKey} {
		if _, ok := schema.Fields[key]; !ok {
			return fmt.Errorf("order key %q missing from schema fields", key)
		}
	}
	return nil
}

func parseOrderTerm(parts []string, schema OrderSchema) (orderTerm, error) {
	term := orderTerm{key: parts[0]}
	if _, ok := schema.Fields[term.key]; !ok {
		return orderTerm{}, invalidf("field %q cannot be used for ordering", term.key)
	}
	switch len(parts) {
	case 1:
	case 2:
		switch strings.ToLower(parts[1]) {
		case "asc":
		case "desc":
			term.desc = true
		default:
			return orderTerm{}, invalidf("invalid direction %q for field %q", parts[1], term.key)
		}
	default:
		return orderTerm{}, invalidf("invalid order segment %q", strings.Join(parts, " "))
	}
	return term, nil
}

func setOrderParams(dest reflect.Value, ord orderParams) error {
	for name, value := range map[string]any{
		"PrimaryKey":    ord.PrimaryKey,
		"PrimaryDesc":   ord.PrimaryDesc,
		"SecondaryKey":  ord.SecondaryKey,
		"SecondaryDesc": ord.SecondaryDesc,
	} {
		field := dest.FieldByName(name)
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("params struct %s has no settable field %q", dest.Type(), name)
		}
		v := reflect.ValueOf(value)
		if !v.Type().ConvertibleTo(field.Type()) {
			return fmt.Errorf("field %q must be %s-compatible, got %s", name, v.Type(), field.Type())
		}
		field.Set(v.Convert(field.Type()))
	}
	return nil
}
