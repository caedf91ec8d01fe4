package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ratiba/core/schedule"
)

var (
	timeParam     = "time"
	pageParam     = "page"
	pageSizeParam = "page_size"
)

// ListParams binds the listing query params into a schedule.QueryFilter.
// Unknown or malformed values fall back to the filter defaults.
type ListParams struct {
	Filter schedule.QueryFilter
}

func (p *ListParams) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}

	if val, ok := data[timeParam]; ok && len(val) > 0 {
		p.Filter.Time = schedule.TimeFilter(strings.ToLower(strings.TrimSpace(val[0])))
	}
	if val, ok := data[pageParam]; ok && len(val) > 0 {
		if page, err := strconv.Atoi(val[0]); err == nil {
			p.Filter.Page = page
		}
	}
	if val, ok := data[pageSizeParam]; ok && len(val) > 0 {
		if size, err := strconv.Atoi(val[0]); err == nil {
			p.Filter.PageSize = size
		}
	}
}
