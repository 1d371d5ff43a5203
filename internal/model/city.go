package model

import (
	"fmt"
	"time"
)

// CityStatus is the lifecycle state of a city record
type CityStatus int

const (
	CityStatusIgnored  CityStatus = 0
	CityStatusNew      CityStatus = 1
	CityStatusImported CityStatus = 2
	CityStatusInactive CityStatus = 3
	CityStatusActive   CityStatus = 4
)

var cityStatusNames = map[CityStatus]string{
	CityStatusIgnored:  "ignored",
	CityStatusNew:      "new",
	CityStatusImported: "imported",
	CityStatusInactive: "inactive",
	CityStatusActive:   "active",
}

func (s CityStatus) String() string {
	if name, ok := cityStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status by name in JSON responses
func (s CityStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *CityStatus) UnmarshalText(text []byte) error {
	for status, name := range cityStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown city status %q", text)
}

// City represents a city in the database
type City struct {
	ID        int64      `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	NameASCII string     `db:"name_ascii" json:"name_ascii"`
	Slug      string     `db:"slug" json:"slug"`
	Province  string     `db:"province" json:"province"`
	Country   string     `db:"country" json:"country"`
	Point     *Point     `db:"point" json:"point,omitempty"`
	Updated   time.Time  `db:"updated" json:"updated"`
	Status    CityStatus `db:"status" json:"status"`
}

func (c City) String() string {
	return fmt.Sprintf("%s, %s, %s", c.Name, c.Province, c.Country)
}

// PostalCode represents a zip/postal code. City is optional: a code may not
// have been resolved to a city yet.
type PostalCode struct {
	ID      int64     `db:"id" json:"id"`
	CityID  *int64    `db:"city_id" json:"city_id,omitempty"`
	Code    string    `db:"code" json:"code"`
	Point   *Point    `db:"point" json:"point,omitempty"`
	Updated time.Time `db:"updated" json:"updated"`

	City *City `db:"-" json:"city,omitempty"`
}

func (p PostalCode) String() string {
	if p.City == nil {
		return fmt.Sprintf("%s: <no city>", p.Code)
	}
	return fmt.Sprintf("%s: %s", p.Code, p.City)
}

// PostalCodeExportRow is one postal code joined to its city, with points kept
// in their stored textual form
type PostalCodeExportRow struct {
	Code        string     `db:"code"`
	CityName    *string    `db:"city_name"`
	Province    *string    `db:"city_province"`
	Country     *string    `db:"city_country"`
	Updated     time.Time  `db:"updated"`
	CityUpdated *time.Time `db:"city_updated"`
	Point       *string    `db:"point"`
	CityPoint   *string    `db:"city_point"`
}
