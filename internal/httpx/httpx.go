package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 1 << 20

func DecodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

func ValidationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		details[err.Field()] = err.Tag()
	}
	return details
}

func ParseLimit(values url.Values, defaultLimit, maxLimit int) (int, error) {
	limit := defaultLimit
	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			return 0, errors.New("invalid limit")
		}
		limit = parsed
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}

// Confirmed reports whether the request carries confirm=true.
func Confirmed(values url.Values) bool {
	ok, err := strconv.ParseBool(values.Get("confirm"))
	return err == nil && ok
}
