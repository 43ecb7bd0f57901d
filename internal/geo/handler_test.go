package geo

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func testErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
	}
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}

func newTestApp() *fiber.App {
	countries := NewMemoryCountryStore()
	provinces := NewMemoryProvinceStore()
	cities := NewMemoryCityStore(provinces)
	persons := NewMemoryPersonStore()

	h := NewHandler(countries, provinces, cities, persons)
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})

	pass := func(c *fiber.Ctx) error { return c.Next() }
	RegisterRoutes(app, h, pass, pass, pass)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("%s %s: bad JSON %q: %v", method, path, raw, err)
		}
	}
	return resp, decoded
}

func dataField(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %v", body)
	}
	return data
}

func entityID(t *testing.T, body map[string]any) int64 {
	t.Helper()
	id, ok := dataField(t, body)["id"].(float64)
	if !ok {
		t.Fatalf("expected numeric id, got %v", body)
	}
	return int64(id)
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func errorMessage(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %v", body)
	}
	msg, _ := errObj["message"].(string)
	return msg
}

func TestCountryCreateIsIdempotent(t *testing.T) {
	app := newTestApp()

	resp, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile", "code": "CL"})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	firstID := entityID(t, body)

	resp, body = doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile", "code": "CL"})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201 on repeat, got %d", resp.StatusCode)
	}
	if entityID(t, body) != firstID {
		t.Errorf("repeat create must resolve to the same row: %d vs %d", entityID(t, body), firstID)
	}

	_, listBody := doJSON(t, app, "GET", "/api/countries", nil)
	meta := listBody["meta"].(map[string]any)
	if total := meta["total"].(float64); total != 1 {
		t.Errorf("expected one country, got %v", total)
	}
}

func TestCountryValidation(t *testing.T) {
	app := newTestApp()

	resp, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"code": "CL"})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "VALIDATION_FAILED" {
		t.Errorf("expected VALIDATION_FAILED, got %s", code)
	}

	resp, _ = doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile", "code": "WAYTOOLONGCODE"})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for oversized code, got %d", resp.StatusCode)
	}
}

func TestHierarchyLifecycle(t *testing.T) {
	app := newTestApp()

	_, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Argentina", "code": "AR"})
	countryID := entityID(t, body)

	resp, body := doJSON(t, app, "POST", "/api/provinces", fiber.Map{
		"name": "Santa Fe", "latitude": -31.6107, "longitude": -60.6973, "countryId": countryID,
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	provinceID := entityID(t, body)

	resp, body = doJSON(t, app, "POST", "/api/cities", fiber.Map{
		"name": "Rafaela", "latitude": -31.2526, "longitude": -61.4917, "provinceId": provinceID,
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	cityID := entityID(t, body)

	// Deleting a parent with children is blocked, bottom-up deletion works.
	resp, body = doJSON(t, app, "DELETE", "/api/provinces/"+itoa(provinceID), nil)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409 deleting province with cities, got %d", resp.StatusCode)
	}
	if msg := errorMessage(t, body); msg != "Province has associated cities" {
		t.Errorf("unexpected message: %q", msg)
	}

	resp, _ = doJSON(t, app, "DELETE", "/api/countries/"+itoa(countryID), nil)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409 deleting country with provinces, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, "DELETE", "/api/cities/"+itoa(cityID), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 deleting leaf city, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, "DELETE", "/api/provinces/"+itoa(provinceID), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 deleting childless province, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, "DELETE", "/api/countries/"+itoa(countryID), nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 deleting childless country, got %d", resp.StatusCode)
	}
}

func TestCreateProvinceMissingCountry(t *testing.T) {
	app := newTestApp()

	resp, body := doJSON(t, app, "POST", "/api/provinces", fiber.Map{
		"name": "Nowhere", "latitude": 1.0, "longitude": 2.0, "countryId": 999,
	})
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestProvinceCoordinateIdentity(t *testing.T) {
	app := newTestApp()

	_, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile"})
	countryID := entityID(t, body)

	_, body = doJSON(t, app, "POST", "/api/provinces", fiber.Map{
		"name": "Valparaiso", "latitude": -33.0472, "longitude": -71.6127, "countryId": countryID,
	})
	firstID := entityID(t, body)

	// Same coordinates resolve to the stored row regardless of the name sent.
	resp, body := doJSON(t, app, "POST", "/api/provinces", fiber.Map{
		"name": "Valpo", "latitude": -33.0472, "longitude": -71.6127, "countryId": countryID,
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if entityID(t, body) != firstID {
		t.Errorf("coordinate duplicate must resolve to existing row")
	}

	resp, _ = doJSON(t, app, "POST", "/api/provinces", fiber.Map{
		"name": "Bad", "latitude": 95.0, "longitude": 0.0, "countryId": countryID,
	})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for out-of-range latitude, got %d", resp.StatusCode)
	}
}

func TestCityNameCollisionAllowed(t *testing.T) {
	app := newTestApp()

	_, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile"})
	countryID := entityID(t, body)
	_, body = doJSON(t, app, "POST", "/api/provinces", fiber.Map{
		"name": "Biobio", "latitude": -37.4689, "longitude": -72.3537, "countryId": countryID,
	})
	provinceID := entityID(t, body)

	_, body = doJSON(t, app, "POST", "/api/cities", fiber.Map{
		"name": "San Carlos", "latitude": -36.4247, "longitude": -71.9581, "provinceId": provinceID,
	})
	firstID := entityID(t, body)

	// Same name, different coordinates: a distinct row, not a conflict.
	resp, body := doJSON(t, app, "POST", "/api/cities", fiber.Map{
		"name": "San Carlos", "latitude": -36.5000, "longitude": -71.9000, "provinceId": provinceID,
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if entityID(t, body) == firstID {
		t.Error("expected a second city row")
	}
}

func TestUpdateCountryConflict(t *testing.T) {
	app := newTestApp()

	doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile", "code": "CL"})
	_, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Peru", "code": "PE"})
	peruID := entityID(t, body)

	resp, body := doJSON(t, app, "PUT", "/api/countries/"+itoa(peruID), fiber.Map{"name": "Chile"})
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if msg := errorMessage(t, body); msg != "Country name already in use" {
		t.Errorf("unexpected message: %q", msg)
	}

	// An update keeping the row's own key is fine.
	resp, _ = doJSON(t, app, "PUT", "/api/countries/"+itoa(peruID), fiber.Map{"name": "Peru", "code": "PE"})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 for self-update, got %d", resp.StatusCode)
	}
}

func TestPatchCountry(t *testing.T) {
	app := newTestApp()

	_, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile"})
	id := entityID(t, body)

	resp, body := doJSON(t, app, "PATCH", "/api/countries/"+itoa(id), fiber.Map{"code": "CL"})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data := dataField(t, body)
	if data["name"] != "Chile" || data["code"] != "CL" {
		t.Errorf("patch must merge: %v", data)
	}
}

func TestReparentProvince(t *testing.T) {
	app := newTestApp()

	_, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile"})
	chileID := entityID(t, body)
	_, body = doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Argentina"})
	argentinaID := entityID(t, body)
	_, body = doJSON(t, app, "POST", "/api/provinces", fiber.Map{
		"name": "Border", "latitude": -30.0, "longitude": -70.0, "countryId": chileID,
	})
	provinceID := entityID(t, body)

	resp, body := doJSON(t, app, "PATCH", "/api/provinces/"+itoa(provinceID), fiber.Map{"countryId": argentinaID})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := dataField(t, body)["countryId"].(float64); int64(got) != argentinaID {
		t.Errorf("expected countryId %d, got %v", argentinaID, got)
	}

	resp, _ = doJSON(t, app, "PATCH", "/api/provinces/"+itoa(provinceID), fiber.Map{"countryId": 999})
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 reparenting onto missing country, got %d", resp.StatusCode)
	}
}

func TestUpdateProvinceCoordinateConflict(t *testing.T) {
	app := newTestApp()

	_, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile"})
	countryID := entityID(t, body)
	_, body = doJSON(t, app, "POST", "/api/provinces", fiber.Map{
		"name": "Maule", "latitude": -35.4264, "longitude": -71.6554, "countryId": countryID,
	})
	if entityID(t, body) == 0 {
		t.Fatal("expected first province")
	}
	_, body = doJSON(t, app, "POST", "/api/provinces", fiber.Map{
		"name": "Nuble", "latitude": -36.7226, "longitude": -72.1114, "countryId": countryID,
	})
	nubleID := entityID(t, body)

	// Moving one province onto another's coordinate pair is a conflict, not a
	// silent merge, and the losing row keeps its coordinates.
	resp, body := doJSON(t, app, "PATCH", "/api/provinces/"+itoa(nubleID), fiber.Map{
		"latitude": -35.4264, "longitude": -71.6554,
	})
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if msg := errorMessage(t, body); msg != "Province coordinates already in use" {
		t.Errorf("unexpected message: %q", msg)
	}

	_, body = doJSON(t, app, "GET", "/api/provinces/"+itoa(nubleID), nil)
	data := dataField(t, body)
	if data["latitude"].(float64) != -36.7226 || data["longitude"].(float64) != -72.1114 {
		t.Errorf("conflicting update must leave the row unchanged: %v", data)
	}

	resp, _ = doJSON(t, app, "PUT", "/api/provinces/"+itoa(nubleID), fiber.Map{
		"name": "Nuble", "latitude": -35.4264, "longitude": -71.6554, "countryId": countryID,
	})
	if resp.StatusCode != 409 {
		t.Errorf("expected 409 via PUT as well, got %d", resp.StatusCode)
	}
}

func TestUpdateCountryClearsCode(t *testing.T) {
	app := newTestApp()

	_, body := doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile", "code": "CL"})
	id := entityID(t, body)

	// PATCH cannot express "remove code"; a full PUT without it can.
	resp, body := doJSON(t, app, "PUT", "/api/countries/"+itoa(id), fiber.Map{"name": "Chile"})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if code, ok := dataField(t, body)["code"]; ok && code != nil {
		t.Errorf("expected code cleared, got %v", code)
	}
}

func TestSearchRejectsBlankTerm(t *testing.T) {
	app := newTestApp()

	for _, path := range []string{
		"/api/countries/search",
		"/api/provinces/search?name=%20%20",
		"/api/cities/search",
		"/api/persons/search",
	} {
		resp, _ := doJSON(t, app, "GET", path, nil)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", path, resp.StatusCode)
		}
	}
}

func TestSearchCountries(t *testing.T) {
	app := newTestApp()

	doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Chile"})
	doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "China"})
	doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": "Peru"})

	_, body := doJSON(t, app, "GET", "/api/countries/search?name=chi", nil)
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array, got %v", body)
	}
	if len(data) != 2 {
		t.Errorf("expected 2 matches, got %d", len(data))
	}
}

func TestGetCountryErrors(t *testing.T) {
	app := newTestApp()

	resp, _ := doJSON(t, app, "GET", "/api/countries/999", nil)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, "GET", "/api/countries/abc", nil)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for non-numeric id, got %d", resp.StatusCode)
	}
}

func TestListPaginationAndSort(t *testing.T) {
	app := newTestApp()

	for _, name := range []string{"Chile", "Argentina", "Bolivia"} {
		doJSON(t, app, "POST", "/api/countries", fiber.Map{"name": name})
	}

	_, body := doJSON(t, app, "GET", "/api/countries?sortBy=name&sortOrder=DESC&limit=2", nil)
	data := body["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(data))
	}
	if name := data[0].(map[string]any)["name"]; name != "Chile" {
		t.Errorf("expected Chile first in DESC order, got %v", name)
	}
	meta := body["meta"].(map[string]any)
	if meta["total"].(float64) != 3 {
		t.Errorf("expected total 3, got %v", meta["total"])
	}

	_, body = doJSON(t, app, "GET", "/api/countries?sortBy=name&limit=2&page=2", nil)
	data = body["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("expected 1 row on page 2, got %d", len(data))
	}
	if name := data[0].(map[string]any)["name"]; name != "Chile" {
		t.Errorf("expected Chile last in ASC order, got %v", name)
	}
}

func TestPersonCreateRejectsDuplicateEmail(t *testing.T) {
	app := newTestApp()

	person := fiber.Map{
		"firstName": "Ada", "lastName": "Silva",
		"email": "ada@example.com", "password": "secret1",
	}
	resp, _ := doJSON(t, app, "POST", "/api/persons", person)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, app, "POST", "/api/persons", person)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}
	if msg := errorMessage(t, body); msg != "Email already registered" {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestPersonResponseHidesPasswordHash(t *testing.T) {
	app := newTestApp()

	_, body := doJSON(t, app, "POST", "/api/persons", fiber.Map{
		"firstName": "Ada", "lastName": "Silva",
		"email": "ada@example.com", "password": "secret1",
	})
	data := dataField(t, body)
	for key := range data {
		if key == "passwordHash" || key == "password" || key == "password_hash" {
			t.Fatalf("response leaks credential field %q", key)
		}
	}
}

func TestPersonCityMustExist(t *testing.T) {
	app := newTestApp()

	resp, _ := doJSON(t, app, "POST", "/api/persons", fiber.Map{
		"firstName": "Ada", "lastName": "Silva",
		"email": "ada@example.com", "password": "secret1", "cityId": 42,
	})
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 for unknown city, got %d", resp.StatusCode)
	}
}

func TestPersonRoleValidation(t *testing.T) {
	app := newTestApp()

	resp, _ := doJSON(t, app, "POST", "/api/persons", fiber.Map{
		"firstName": "Ada", "lastName": "Silva",
		"email": "ada@example.com", "password": "secret1", "role": "SUPERUSER",
	})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for unknown role, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, app, "POST", "/api/persons", fiber.Map{
		"firstName": "Ada", "lastName": "Silva",
		"email": "ada@example.com", "password": "secret1", "role": "MODERATOR",
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if role := dataField(t, body)["role"]; role != "MODERATOR" {
		t.Errorf("expected MODERATOR, got %v", role)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
