package geo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"atlas-backend/internal/model"
	"atlas-backend/internal/store"
)

// In-memory store implementations backing tests and local experiments. They
// enforce the same unique keys the SQL schema does and return the same
// sentinel errors, so the resolver's race recovery behaves identically.

// --- countries ---

type MemoryCountryStore struct {
	mu     sync.RWMutex
	rows   map[int64]model.Country
	nextID int64
}

func NewMemoryCountryStore() *MemoryCountryStore {
	return &MemoryCountryStore{rows: make(map[int64]model.Country), nextID: 1}
}

func (m *MemoryCountryStore) GetByID(_ context.Context, id int64) (*model.Country, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.rows[id]; ok {
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (m *MemoryCountryStore) GetByName(_ context.Context, name string) (*model.Country, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.rows {
		if c.Name == name {
			c := c
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemoryCountryStore) GetByCode(_ context.Context, code string) (*model.Country, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.rows {
		if c.Code != nil && *c.Code == code {
			c := c
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemoryCountryStore) List(_ context.Context, p ListParams) ([]model.Country, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]model.Country, 0, len(m.rows))
	for _, c := range m.rows {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		less := false
		switch p.SortBy {
		case "name":
			less = all[i].Name < all[j].Name
		case "code":
			less = deref(all[i].Code) < deref(all[j].Code)
		default:
			less = all[i].ID < all[j].ID
		}
		if p.SortOrder == "DESC" {
			return !less
		}
		return less
	})
	return pageOf(all, p), int64(len(all)), nil
}

func (m *MemoryCountryStore) Search(_ context.Context, term string) ([]model.Country, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Country{}
	for _, c := range m.rows {
		if containsFold(c.Name, term) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryCountryStore) Insert(_ context.Context, c *model.Country) (*model.Country, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Name == c.Name {
			return nil, store.ErrUniqueViolation
		}
		if c.Code != nil && row.Code != nil && *row.Code == *c.Code {
			return nil, store.ErrUniqueViolation
		}
	}
	created := *c
	created.ID = m.nextID
	m.nextID++
	m.rows[created.ID] = created
	return &created, nil
}

func (m *MemoryCountryStore) Update(_ context.Context, c *model.Country) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[c.ID]; !ok {
		return store.ErrNotFound
	}
	for id, row := range m.rows {
		if id == c.ID {
			continue
		}
		if row.Name == c.Name {
			return store.ErrUniqueViolation
		}
		if c.Code != nil && row.Code != nil && *row.Code == *c.Code {
			return store.ErrUniqueViolation
		}
	}
	m.rows[c.ID] = *c
	return nil
}

func (m *MemoryCountryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// --- provinces ---

type MemoryProvinceStore struct {
	mu     sync.RWMutex
	rows   map[int64]model.Province
	nextID int64
}

func NewMemoryProvinceStore() *MemoryProvinceStore {
	return &MemoryProvinceStore{rows: make(map[int64]model.Province), nextID: 1}
}

func (m *MemoryProvinceStore) GetByID(_ context.Context, id int64) (*model.Province, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.rows[id]; ok {
		return &p, nil
	}
	return nil, store.ErrNotFound
}

func (m *MemoryProvinceStore) GetByCoords(_ context.Context, lat, lng float64) (*model.Province, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.rows {
		if p.Latitude == lat && p.Longitude == lng {
			p := p
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemoryProvinceStore) List(_ context.Context, params ListParams) ([]model.Province, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]model.Province, 0, len(m.rows))
	for _, p := range m.rows {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		less := false
		switch params.SortBy {
		case "name":
			less = all[i].Name < all[j].Name
		case "latitude":
			less = all[i].Latitude < all[j].Latitude
		case "longitude":
			less = all[i].Longitude < all[j].Longitude
		case "country_id":
			less = all[i].CountryID < all[j].CountryID
		default:
			less = all[i].ID < all[j].ID
		}
		if params.SortOrder == "DESC" {
			return !less
		}
		return less
	})
	return pageOf(all, params), int64(len(all)), nil
}

func (m *MemoryProvinceStore) ListByCountry(_ context.Context, countryID int64) ([]model.Province, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Province{}
	for _, p := range m.rows {
		if p.CountryID == countryID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryProvinceStore) Search(_ context.Context, term string) ([]model.Province, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Province{}
	for _, p := range m.rows {
		if containsFold(p.Name, term) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryProvinceStore) CountByCountry(_ context.Context, countryID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, p := range m.rows {
		if p.CountryID == countryID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryProvinceStore) Insert(_ context.Context, p *model.Province) (*model.Province, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Latitude == p.Latitude && row.Longitude == p.Longitude {
			return nil, store.ErrUniqueViolation
		}
	}
	created := *p
	created.ID = m.nextID
	m.nextID++
	m.rows[created.ID] = created
	return &created, nil
}

func (m *MemoryProvinceStore) Update(_ context.Context, p *model.Province) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; !ok {
		return store.ErrNotFound
	}
	for id, row := range m.rows {
		if id != p.ID && row.Latitude == p.Latitude && row.Longitude == p.Longitude {
			return store.ErrUniqueViolation
		}
	}
	m.rows[p.ID] = *p
	return nil
}

func (m *MemoryProvinceStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// --- cities ---

type MemoryCityStore struct {
	mu     sync.RWMutex
	rows   map[int64]model.City
	nextID int64

	// provinces is consulted for the name+province-name lookup path.
	provinces *MemoryProvinceStore
}

func NewMemoryCityStore(provinces *MemoryProvinceStore) *MemoryCityStore {
	return &MemoryCityStore{rows: make(map[int64]model.City), nextID: 1, provinces: provinces}
}

func (m *MemoryCityStore) GetByID(_ context.Context, id int64) (*model.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.rows[id]; ok {
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (m *MemoryCityStore) GetByCoords(_ context.Context, lat, lng float64) (*model.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.rows {
		if c.Latitude == lat && c.Longitude == lng {
			c := c
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemoryCityStore) GetByNameInProvince(_ context.Context, name string, provinceID int64) (*model.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.rows {
		if c.Name == name && c.ProvinceID == provinceID {
			c := c
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemoryCityStore) GetByNameAndProvinceName(ctx context.Context, cityName, provinceName string) (*model.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.rows {
		if c.Name != cityName {
			continue
		}
		p, err := m.provinces.GetByID(ctx, c.ProvinceID)
		if err == nil && p.Name == provinceName {
			c := c
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemoryCityStore) List(_ context.Context, params ListParams) ([]model.City, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]model.City, 0, len(m.rows))
	for _, c := range m.rows {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		less := false
		switch params.SortBy {
		case "name":
			less = all[i].Name < all[j].Name
		case "latitude":
			less = all[i].Latitude < all[j].Latitude
		case "longitude":
			less = all[i].Longitude < all[j].Longitude
		case "province_id":
			less = all[i].ProvinceID < all[j].ProvinceID
		default:
			less = all[i].ID < all[j].ID
		}
		if params.SortOrder == "DESC" {
			return !less
		}
		return less
	})
	return pageOf(all, params), int64(len(all)), nil
}

func (m *MemoryCityStore) ListByProvince(_ context.Context, provinceID int64) ([]model.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.City{}
	for _, c := range m.rows {
		if c.ProvinceID == provinceID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryCityStore) Search(_ context.Context, term string) ([]model.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.City{}
	for _, c := range m.rows {
		if containsFold(c.Name, term) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryCityStore) CountByProvince(_ context.Context, provinceID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, c := range m.rows {
		if c.ProvinceID == provinceID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryCityStore) Insert(_ context.Context, c *model.City) (*model.City, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Latitude == c.Latitude && row.Longitude == c.Longitude {
			return nil, store.ErrUniqueViolation
		}
	}
	created := *c
	created.ID = m.nextID
	m.nextID++
	m.rows[created.ID] = created
	return &created, nil
}

func (m *MemoryCityStore) Update(_ context.Context, c *model.City) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[c.ID]; !ok {
		return store.ErrNotFound
	}
	for id, row := range m.rows {
		if id != c.ID && row.Latitude == c.Latitude && row.Longitude == c.Longitude {
			return store.ErrUniqueViolation
		}
	}
	m.rows[c.ID] = *c
	return nil
}

func (m *MemoryCityStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// --- persons ---

type MemoryPersonStore struct {
	mu     sync.RWMutex
	rows   map[int64]model.Person
	nextID int64
}

func NewMemoryPersonStore() *MemoryPersonStore {
	return &MemoryPersonStore{rows: make(map[int64]model.Person), nextID: 1}
}

func (m *MemoryPersonStore) GetByID(_ context.Context, id int64) (*model.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.rows[id]; ok {
		return &p, nil
	}
	return nil, store.ErrNotFound
}

func (m *MemoryPersonStore) GetByEmail(_ context.Context, email string) (*model.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.rows {
		if p.Email == email {
			p := p
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemoryPersonStore) List(_ context.Context, params ListParams) ([]model.Person, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]model.Person, 0, len(m.rows))
	for _, p := range m.rows {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		less := false
		switch params.SortBy {
		case "first_name":
			less = all[i].FirstName < all[j].FirstName
		case "last_name":
			less = all[i].LastName < all[j].LastName
		case "email":
			less = all[i].Email < all[j].Email
		case "role":
			less = all[i].Role < all[j].Role
		case "city_id":
			less = deref(all[i].CityID) < deref(all[j].CityID)
		default:
			less = all[i].ID < all[j].ID
		}
		if params.SortOrder == "DESC" {
			return !less
		}
		return less
	})
	return pageOf(all, params), int64(len(all)), nil
}

func (m *MemoryPersonStore) ListByCity(_ context.Context, cityID int64) ([]model.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Person{}
	for _, p := range m.rows {
		if p.CityID != nil && *p.CityID == cityID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (m *MemoryPersonStore) Search(_ context.Context, term string) ([]model.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Person{}
	for _, p := range m.rows {
		if containsFold(p.FirstName, term) || containsFold(p.LastName, term) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (m *MemoryPersonStore) CountByCity(_ context.Context, cityID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, p := range m.rows {
		if p.CityID != nil && *p.CityID == cityID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryPersonStore) Insert(_ context.Context, p *model.Person) (*model.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == p.Email {
			return nil, store.ErrUniqueViolation
		}
	}
	created := *p
	created.ID = m.nextID
	m.nextID++
	m.rows[created.ID] = created
	return &created, nil
}

func (m *MemoryPersonStore) Update(_ context.Context, p *model.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; !ok {
		return store.ErrNotFound
	}
	for id, row := range m.rows {
		if id != p.ID && row.Email == p.Email {
			return store.ErrUniqueViolation
		}
	}
	m.rows[p.ID] = *p
	return nil
}

func (m *MemoryPersonStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// --- helpers ---

func pageOf[T any](all []T, p ListParams) []T {
	start := p.Offset()
	if start >= len(all) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func containsFold(s, term string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(term))
}

func deref[T int64 | string](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// Interface conformance
var (
	_ CountryStore  = (*MemoryCountryStore)(nil)
	_ ProvinceStore = (*MemoryProvinceStore)(nil)
	_ CityStore     = (*MemoryCityStore)(nil)
	_ PersonStore   = (*MemoryPersonStore)(nil)
)
