package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"atlas-backend/internal/store"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100

	// maxPage keeps the computed OFFSET well inside the int range.
	maxPage = 1_000_000
)

// ListParams is a validated pagination request. SortBy holds the storage
// column, already checked against the collection's sortable set.
type ListParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string // ASC or DESC
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// OrderLimitSQL renders the ORDER BY / LIMIT / OFFSET tail of a list query.
// SortBy is never user-controlled text at this point; it came out of the
// sortable allowlist.
func (p ListParams) OrderLimitSQL(pb store.ParamBuilder) string {
	return fmt.Sprintf(" ORDER BY %s %s LIMIT %s OFFSET %s",
		p.SortBy, p.SortOrder, pb.Add(p.Limit), pb.Add(p.Offset()))
}

// ParseListParams validates page, limit, sortBy and sortOrder query parameters.
// sortable maps exposed field names to storage columns; an unrecognized sortBy
// is a 400, as is a malformed page or limit.
func ParseListParams(c *fiber.Ctx, sortable map[string]string) (ListParams, error) {
	params := ListParams{
		Page:      defaultPage,
		Limit:     defaultLimit,
		SortBy:    "id",
		SortOrder: "ASC",
	}

	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxPage {
			return params, BadRequestError(fmt.Sprintf("Invalid page: %s", raw))
		}
		params.Page = v
	}

	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return params, BadRequestError(fmt.Sprintf("Invalid limit: %s", raw))
		}
		if v > maxLimit {
			v = maxLimit
		}
		params.Limit = v
	}

	if raw := c.Query("sortBy"); raw != "" {
		column, ok := sortable[raw]
		if !ok {
			return params, BadRequestError(fmt.Sprintf("Unknown sort field: %s", raw))
		}
		params.SortBy = column
	}

	if raw := c.Query("sortOrder"); raw != "" {
		switch strings.ToUpper(raw) {
		case "ASC":
			params.SortOrder = "ASC"
		case "DESC":
			params.SortOrder = "DESC"
		default:
			return params, BadRequestError(fmt.Sprintf("Invalid sort order: %s", raw))
		}
	}

	return params, nil
}

// ParseSearchTerm extracts and validates the name query parameter for search
// endpoints. Blank (or all-whitespace) terms are rejected.
func ParseSearchTerm(c *fiber.Ctx) (string, error) {
	term := strings.TrimSpace(c.Query("name"))
	if term == "" {
		return "", BadRequestError("Search name must not be empty")
	}
	return term, nil
}
