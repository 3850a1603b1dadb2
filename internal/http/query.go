package http

import (
	"net/http"
	"strconv"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
)

func queryString(r *http.Request, name string) *string {
	if !r.URL.Query().Has(name) {
		return nil
	}
	v := r.URL.Query().Get(name)
	return &v
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.NewValidation("query parameter %s must be a boolean", name).WrapParent(err)
	}
	return v, nil
}

func queryInt32(r *http.Request, name string) (int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, apperr.NewValidation("query parameter %s must be an integer", name).WrapParent(err)
	}
	return int32(v), nil
}
