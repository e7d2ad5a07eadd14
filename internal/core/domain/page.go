package domain

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest décrit la fenêtre [Page*Size, Page*Size+Size).
type PageRequest struct {
	Page int
	Size int
}

func NewPageRequest(page, size int) (PageRequest, error) {
	req := PageRequest{Page: page, Size: size}
	if err := req.Validate(); err != nil {
		return PageRequest{}, err
	}
	return req, nil
}

func (r PageRequest) Validate() error {
	if r.Page < 0 || r.Size < 1 || r.Size > MaxPageSize {
		return ErrInvalidPage
	}
	// OFFSET doit tenir dans un int32 côté SQL (test par division : pas de débordement)
	if r.Page > math.MaxInt32/r.Size {
		return ErrInvalidPage
	}
	return nil
}

func (r PageRequest) Offset() int { return r.Page * r.Size }

type Page[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// EmptyPage garde Items non nil pour que le JSON soit [] et pas null.
func EmptyPage[T any](req PageRequest) Page[T] {
	return Page[T]{Items: []T{}, Page: req.Page, Size: req.Size}
}

func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

func (p Page[T]) HasNext() bool {
	return int64((p.Page+1)*p.Size) < p.Total
}
