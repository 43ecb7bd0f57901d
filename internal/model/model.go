package model

import "fmt"

// Role is the authorization level carried in a token and stored on a Person.
// The three roles are independently enumerated on endpoints that require them;
// there is no derived hierarchy between them.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleModerator, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// Country is the root of the Country→Province→City→Person hierarchy.
// name is globally unique; code is globally unique when present.
type Country struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Code *string `json:"code,omitempty"`
}

// Province belongs to a Country. The (latitude, longitude) pair is globally
// unique across all provinces.
type Province struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CountryID int64   `json:"countryId"`
}

// City belongs to a Province. The (latitude, longitude) pair is globally
// unique across all cities; (name, provinceId) is expected unique but only
// enforced best-effort.
type City struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ProvinceID int64   `json:"provinceId"`
}

// Person is the leaf of the hierarchy. Email is globally unique; the city
// reference is optional. The password hash never serializes.
type Person struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	CityID       *int64 `json:"cityId,omitempty"`
}

// UserContext represents the authenticated caller, set by auth middleware.
type UserContext struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// HasAnyRole checks membership in an endpoint's allowed-role set.
func (u *UserContext) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
