package app

import "wrongnote-service/internal/domain"

// PageSize is the number of problems shown per page.
const PageSize = 7

// Page returns the 1-based page of problems. Pages outside the valid range are empty.
func Page(problems []domain.Problem, page, size int) []domain.Problem {
	if page < 1 || size < 1 {
		return []domain.Problem{}
	}
	start := (page - 1) * size
	if start >= len(problems) {
		return []domain.Problem{}
	}
	end := min(start+size, len(problems))
	return problems[start:end]
}

// TotalPages is never less than one so an empty category still renders a page.
func TotalPages(problems []domain.Problem, size int) int {
	if size < 1 {
		return 1
	}
	return max(1, (len(problems)+size-1)/size)
}
