package geo

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"atlas-backend/internal/store"
)

func paramsFor(t *testing.T, query string) (int, ListParams) {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	app.Get("/items", func(c *fiber.Ctx) error {
		params, err := ParseListParams(c, ProvinceSortable)
		if err != nil {
			return err
		}
		return c.JSON(params)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/items"+query, nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var params ListParams
	if resp.StatusCode == 200 {
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &params); err != nil {
			t.Fatalf("bad JSON %q: %v", raw, err)
		}
	}
	return resp.StatusCode, params
}

func TestParseListParamsDefaults(t *testing.T) {
	status, params := paramsFor(t, "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	want := ListParams{Page: 1, Limit: 10, SortBy: "id", SortOrder: "ASC"}
	if params != want {
		t.Errorf("expected %+v, got %+v", want, params)
	}
}

func TestParseListParamsMapsSortField(t *testing.T) {
	status, params := paramsFor(t, "?sortBy=countryId&sortOrder=desc&page=3&limit=25")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if params.SortBy != "country_id" {
		t.Errorf("expected column country_id, got %s", params.SortBy)
	}
	if params.SortOrder != "DESC" {
		t.Errorf("expected DESC, got %s", params.SortOrder)
	}
	if params.Page != 3 || params.Limit != 25 {
		t.Errorf("unexpected paging: %+v", params)
	}
}

func TestParseListParamsCapsLimit(t *testing.T) {
	status, params := paramsFor(t, "?limit=5000")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if params.Limit != maxLimit {
		t.Errorf("expected limit capped at %d, got %d", maxLimit, params.Limit)
	}
}

func TestParseListParamsRejectsBadInput(t *testing.T) {
	cases := []string{
		"?page=0",
		"?page=abc",
		"?page=1000001",
		"?page=9999999999999999999",
		"?limit=-1",
		"?limit=ten",
		"?sortBy=password",
		"?sortOrder=sideways",
	}
	for _, query := range cases {
		if status, _ := paramsFor(t, query); status != 400 {
			t.Errorf("%s: expected 400, got %d", query, status)
		}
	}
}

func TestOffset(t *testing.T) {
	p := ListParams{Page: 3, Limit: 25}
	if got := p.Offset(); got != 50 {
		t.Errorf("expected offset 50, got %d", got)
	}
}

func TestOrderLimitSQL(t *testing.T) {
	pb := (&store.PostgresDialect{}).NewParamBuilder()
	p := ListParams{Page: 2, Limit: 10, SortBy: "name", SortOrder: "DESC"}

	sql := p.OrderLimitSQL(pb)
	want := " ORDER BY name DESC LIMIT $1 OFFSET $2"
	if sql != want {
		t.Errorf("expected %q, got %q", want, sql)
	}
	params := pb.Params()
	if len(params) != 2 || params[0] != 10 || params[1] != 10 {
		t.Errorf("unexpected params: %v", params)
	}
}
