package contentrepo

import (
	"fmt"
	"time"
)

// ValidateProperties checks the supplied properties against the type
// definition and returns the normalized set. Validation fails fast at the
// first violation.
//
// On create, defaults are injected for absent definitions and required
// properties without a default fail. On update only the supplied ids are
// checked; merging with the existing set is the caller's concern. isPWC
// reports whether the target is a private working copy, which gates
// when-checked-out updatability.
func ValidateProperties(def *TypeDefinition, props Properties, isCreate, isPWC bool) (Properties, error) {
	out := make(Properties, len(props))

	for id, value := range props {
		pd, known := def.PropertyDefs[id]
		if !known {
			return nil, fmt.Errorf("%w: unknown property %q for type %q", ErrConstraintViolation, id, def.ID)
		}
		switch pd.Updatability {
		case UpdatabilityReadOnly:
			return nil, fmt.Errorf("%w: property %q is read-only", ErrConstraintViolation, id)
		case UpdatabilityOnCreate:
			if !isCreate {
				return nil, fmt.Errorf("%w: property %q may only be set at creation", ErrConstraintViolation, id)
			}
		case UpdatabilityWhenCheckedOut:
			if !isPWC {
				return nil, fmt.Errorf("%w: property %q may only be set on a checked-out working copy", ErrConstraintViolation, id)
			}
		}
		normalized, err := normalizeValue(pd, value)
		if err != nil {
			return nil, err
		}
		out[id] = normalized
	}

	if isCreate {
		for id, pd := range def.PropertyDefs {
			if _, supplied := out[id]; supplied {
				continue
			}
			if pd.Default != nil {
				out[id] = pd.Default.Clone()
				continue
			}
			if pd.Required {
				return nil, fmt.Errorf("%w: required property %q missing and has no default", ErrConstraintViolation, id)
			}
		}
	}

	return out, nil
}

// normalizeValue checks the tag and cardinality and coerces each element to
// the canonical Go type for the definition's datatype.
func normalizeValue(pd PropertyDefinition, value PropertyValue) (PropertyValue, error) {
	if value.Type != "" && value.Type != pd.Type {
		return PropertyValue{}, fmt.Errorf("%w: property %q expects %s, got %s", ErrConstraintViolation, pd.ID, pd.Type, value.Type)
	}
	if pd.Cardinality == CardinalitySingle && len(value.Values) > 1 {
		return PropertyValue{}, fmt.Errorf("%w: property %q is single-valued", ErrConstraintViolation, pd.ID)
	}
	if pd.Required && len(value.Values) == 0 {
		return PropertyValue{}, fmt.Errorf("%w: required property %q has no value", ErrConstraintViolation, pd.ID)
	}

	out := PropertyValue{Type: pd.Type, Values: make([]any, 0, len(value.Values))}
	for _, raw := range value.Values {
		coerced, err := coerceElement(pd.Type, raw)
		if err != nil {
			return PropertyValue{}, fmt.Errorf("%w: property %q: %v", ErrConstraintViolation, pd.ID, err)
		}
		out.Values = append(out.Values, coerced)
	}
	return out, nil
}

// coerceElement accepts both native Go values and the loosely typed values a
// JSON decoder produces (float64 numbers, RFC 3339 strings for datetimes).
func coerceElement(t PropertyType, raw any) (any, error) {
	switch t {
	case PropertyTypeString, PropertyTypeID:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case PropertyTypeInteger:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case float64:
			if v == float64(int64(v)) {
				return int64(v), nil
			}
		}
	case PropertyTypeBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case PropertyTypeDecimal:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		}
	case PropertyTypeDateTime:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339, v)
			if err == nil {
				return parsed.UTC(), nil
			}
		}
	}
	return nil, fmt.Errorf("value %v is not a valid %s", raw, t)
}
