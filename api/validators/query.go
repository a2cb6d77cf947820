package validators

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/foodrescue/rescue-backend/pkg/errors"
)

// QueryString returns the trimmed query value for key.
func QueryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ParseQueryInt reads an optional integer in [min, max], returning fallback
// when the parameter is absent.
func ParseQueryInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	raw := QueryString(r, key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "must be an integer", err)
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key).
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryFloat reads a float in [min, max]. A required parameter that is
// absent is a validation error; an optional one returns fallback.
func ParseQueryFloat(r *http.Request, key string, required bool, fallback, min, max float64) (float64, error) {
	raw := QueryString(r, key)
	if raw == "" {
		if required {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "missing "+key).
				WithDetails(map[string]any{"field": key, "reason": "required"})
		}
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) {
		return 0, queryError(key, "must be a number", err)
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key).
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryBool reads an optional strconv-style boolean.
func ParseQueryBool(r *http.Request, key string, fallback bool) (bool, error) {
	raw := QueryString(r, key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, queryError(key, "must be true or false", err)
	}
	return value, nil
}

func queryError(key, reason string, err error) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key).
		WithDetails(map[string]any{"field": key, "reason": reason})
}
