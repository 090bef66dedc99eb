package pagination

const (
	// DefaultPageSize is the standard page size when one is not provided.
	DefaultPageSize = 10
	// MaxPageSize caps how many rows a single page may request.
	MaxPageSize = 100
)

// Params holds page-number pagination inputs.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Meta mirrors the pagination block returned by the order listing endpoint.
type Meta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_items"`
	PageSize    int `json:"page_size"`
}

// NormalizePageSize enforces the configured default and maximum sizes.
func NormalizePageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// Normalize returns a copy with page >= 1 and a bounded page size.
func (p Params) Normalize() Params {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return Params{Page: page, PageSize: NormalizePageSize(p.PageSize)}
}

// HasNext reports whether another page exists after the current one.
func (m Meta) HasNext() bool {
	return m.CurrentPage < m.TotalPages
}
