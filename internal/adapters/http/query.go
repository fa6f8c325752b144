package httpadapter

import (
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

type listQuery struct {
	Limit  *int
	Status *string
}

func bindListQuery(r *http.Request) (listQuery, error) {
	var q listQuery
	values := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", values, &q.Limit); err != nil {
		return q, domain.WrapError(domain.ErrInvalidInput, "bind limit", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "status", values, &q.Status); err != nil {
		return q, domain.WrapError(domain.ErrInvalidInput, "bind status", err)
	}
	return q, nil
}

func bindAsync(r *http.Request) (bool, error) {
	var async *bool
	if err := runtime.BindQueryParameter("form", true, false, "async", r.URL.Query(), &async); err != nil {
		return false, domain.WrapError(domain.ErrInvalidInput, "bind async", err)
	}
	return async != nil && *async, nil
}

// filterList keeps items accepted by keep, truncated to limit when set.
func filterList[T any](items []T, limit *int, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep != nil && !keep(item) {
			continue
		}
		out = append(out, item)
		if limit != nil && *limit > 0 && len(out) == *limit {
			break
		}
	}
	return out
}
