package repository

import "gorm.io/gorm"

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PageRequest struct {
	Page     int
	PageSize int
}

func (r PageRequest) offset() int { return (r.Page - 1) * r.PageSize }

type PageResult[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

func normalizePageRequest(req PageRequest) PageRequest {
	if req.Page < 1 {
		req.Page = DefaultPage
	}
	if req.PageSize < 1 {
		req.PageSize = DefaultPageSize
	}
	if req.PageSize > MaxPageSize {
		req.PageSize = MaxPageSize
	}
	return req
}

func calcTotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	size := int64(pageSize)
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return int(pages)
}

// paginate counts the rows matched by scope and loads the requested page in
// the given order. A page past the end yields no items but the real total.
func paginate[T any](db *gorm.DB, scope func(*gorm.DB) *gorm.DB, req PageRequest, order ...string) (PageResult[T], error) {
	req = normalizePageRequest(req)
	out := PageResult[T]{Items: []T{}, Page: req.Page, PageSize: req.PageSize}

	var model T
	if err := scope(db.Model(&model)).Count(&out.Total).Error; err != nil {
		return out, err
	}
	out.TotalPages = calcTotalPages(out.Total, req.PageSize)
	if out.Total == 0 || req.offset() >= int(out.Total) {
		return out, nil
	}
	q := scope(db)
	for _, o := range order {
		q = q.Order(o)
	}
	err := q.Offset(req.offset()).Limit(req.PageSize).Find(&out.Items).Error
	return out, err
}
