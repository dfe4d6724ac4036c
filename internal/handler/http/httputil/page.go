package httputil

import "banking/internal/domain"

type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

// NewPageResponse converts a domain page, mapping each item with convert.
func NewPageResponse[S, T any](page domain.Page[S], convert func(S) T) PageResponse[T] {
	content := make([]T, 0, len(page.Content))
	for _, item := range page.Content {
		content = append(content, convert(item))
	}
	return PageResponse[T]{
		Content:       content,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
	}
}
