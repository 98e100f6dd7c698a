package pagination

import (
	"math"

	"github.com/gofiber/fiber/v2"
)

// Page sizes. The event journal is the longest listing and pages widest.
const (
	DefaultLimit  = 20
	MaxLimit      = 200
	MaxEventLimit = 1000
)

// maxOffset keeps offsets inside what every SQL dialect accepts
const maxOffset = math.MaxInt32

// Params represents pagination parameters
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// Meta represents pagination metadata
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// GetParams reads ?page and ?limit for wallet and operator listings
func GetParams(c *fiber.Ctx) *Params {
	return ParseQuery(c, MaxLimit)
}

// GetEventParams reads ?page and ?limit for the event journal
func GetEventParams(c *fiber.Ctx) *Params {
	return ParseQuery(c, MaxEventLimit)
}

// ParseQuery reads ?page and ?limit, capping limit at maxLimit. Unparsable
// values fall back to the first page of DefaultLimit items.
func ParseQuery(c *fiber.Ctx, maxLimit int) *Params {
	return New(c.QueryInt("page", 1), c.QueryInt("limit", DefaultLimit), maxLimit)
}

// New normalizes a page request
func New(page, limit, maxLimit int) *Params {
	if limit < 1 {
		limit = DefaultLimit
	}
	limit = min(limit, maxLimit)
	page = max(page, 1)
	page = min(page, maxOffset/limit+1)

	return &Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// GetMeta calculates pagination metadata
func GetMeta(params *Params, total int64) *Meta {
	limit := int64(params.Limit)
	totalPages := (total + limit - 1) / limit

	return &Meta{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    int64(params.Page) < totalPages,
		HasPrev:    params.Page > 1,
	}
}

// Response represents paginated response
type Response struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta"`
}

// NewResponse creates a new paginated response
func NewResponse(data interface{}, params *Params, total int64) *Response {
	return &Response{
		Data: data,
		Meta: GetMeta(params, total),
	}
}
