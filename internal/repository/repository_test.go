package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alexivanou/simple-geo/internal/config"
	"github.com/alexivanou/simple-geo/internal/database"
	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/alexivanou/simple-geo/migrations"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultTables = config.TableConfig{City: "cities", PostalCode: "postal_codes"}

func setupDB(t *testing.T) (*sqlx.DB, config.DBConfig) {
	t.Helper()
	cfg := config.DBConfig{Type: config.DBTypeMemory, Name: "repo_" + uuid.NewString()}
	db, err := database.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, cfg
}

func setupRepo(t *testing.T) *Container {
	t.Helper()
	db, cfg := setupDB(t)
	require.NoError(t, database.Migrate(db, cfg))
	return NewRepositories(db, cfg.Type, defaultTables)
}

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newCity(name, slug, province, country string) *model.City {
	return &model.City{
		Name:      name,
		NameASCII: name,
		Slug:      slug,
		Province:  province,
		Country:   country,
		Updated:   jan1,
		Status:    model.CityStatusImported,
	}
}

func TestCityRepository_CreateAndGet(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	city := newCity("Toronto", "toronto-on-ca", "ON", "CA")
	city.Point = model.NewPoint(-79.3832, 43.6532)
	require.NoError(t, repos.City.Create(ctx, city))
	assert.NotZero(t, city.ID)

	got, err := repos.City.GetByID(ctx, city.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Toronto", got.Name)
	assert.Equal(t, "toronto-on-ca", got.Slug)
	assert.Equal(t, model.CityStatusImported, got.Status)
	assert.True(t, jan1.Equal(got.Updated), "updated = %s", got.Updated)
	require.NotNil(t, got.Point)
	assert.Equal(t, -79.3832, got.Point.Lon)
	assert.Equal(t, 43.6532, got.Point.Lat)

	bySlug, err := repos.City.GetBySlug(ctx, "toronto-on-ca")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, city.ID, bySlug.ID)

	missing, err := repos.City.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = repos.City.GetBySlug(ctx, "nowhere")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCityRepository_NullPoint(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	city := newCity("Nowhere", "nowhere-on-ca", "ON", "CA")
	require.NoError(t, repos.City.Create(ctx, city))

	got, err := repos.City.GetByID(ctx, city.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Point)
}

func TestCityRepository_FindByNaturalKey(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repos.City.Create(ctx, newCity("London", "london-on-ca", "ON", "CA")))
	require.NoError(t, repos.City.Create(ctx, newCity("London", "london-eng-gb", "ENG", "GB")))

	got, err := repos.City.FindByNaturalKey(ctx, "LONDON", "ON", "CA")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "london-on-ca", got.Slug)

	got, err = repos.City.FindByNaturalKey(ctx, "london", "QC", "CA")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repos.City.Create(ctx, newCity("london", "london-on-ca-1", "ON", "CA")))
	_, err = repos.City.FindByNaturalKey(ctx, "London", "ON", "CA")
	assert.ErrorIs(t, err, ErrMultipleResults)
}

func TestCityRepository_SlugExists(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repos.City.Create(ctx, newCity("Paris", "paris-75-fr", "75", "FR")))

	exists, err := repos.City.SlugExists(ctx, "paris-75-fr")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repos.City.SlugExists(ctx, "paris-75-fr-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCityRepository_SlugIsUnique(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repos.City.Create(ctx, newCity("Paris", "paris-75-fr", "75", "FR")))
	err := repos.City.Create(ctx, newCity("Paris", "paris-75-fr", "75", "FR"))
	assert.Error(t, err)
}

func TestCityRepository_Update(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	city := newCity("Kitchener", "kitchener-on-ca", "ON", "CA")
	require.NoError(t, repos.City.Create(ctx, city))

	later := jan1.Add(48 * time.Hour)
	city.Point = model.NewPoint(-80.4925, 43.4516)
	city.Updated = later
	city.Status = model.CityStatusActive
	require.NoError(t, repos.City.Update(ctx, city))

	got, err := repos.City.GetByID(ctx, city.ID)
	require.NoError(t, err)
	assert.True(t, model.PointsEqual(city.Point, got.Point))
	assert.True(t, later.Equal(got.Updated))
	assert.Equal(t, model.CityStatusActive, got.Status)
}

func TestCityRepository_Search(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	montreal := newCity("Montréal", "montreal-qc-ca", "QC", "CA")
	montreal.NameASCII = "Montreal"
	require.NoError(t, repos.City.Create(ctx, montreal))
	require.NoError(t, repos.City.Create(ctx, newCity("Mont-Royal", "mont-royal-qc-ca", "QC", "CA")))
	require.NoError(t, repos.City.Create(ctx, newCity("Moncton", "moncton-nb-ca", "NB", "CA")))
	require.NoError(t, repos.City.Create(ctx, newCity("Montpellier", "montpellier-34-fr", "34", "FR")))

	tests := []struct {
		name   string
		filter model.CityFilter
		want   []string
	}{
		{"ascii name match", model.CityFilter{Query: "montreal"}, []string{"montreal-qc-ca"}},
		{"prefix across countries", model.CityFilter{Query: "mont"}, []string{"mont-royal-qc-ca", "montpellier-34-fr", "montreal-qc-ca"}},
		{"country filter", model.CityFilter{Query: "mon", Country: "ca"}, []string{"moncton-nb-ca", "mont-royal-qc-ca", "montreal-qc-ca"}},
		{"province filter", model.CityFilter{Country: "CA", Province: "NB"}, []string{"moncton-nb-ca"}},
		{"limit", model.CityFilter{Query: "mon", Limit: 1}, []string{"moncton-nb-ca"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cities, err := repos.City.Search(ctx, tt.filter)
			require.NoError(t, err)
			var slugs []string
			for _, c := range cities {
				slugs = append(slugs, c.Slug)
			}
			assert.ElementsMatch(t, tt.want, slugs)
		})
	}
}

func TestCityRepository_ListWithPoints(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	withPoint := newCity("Ottawa", "ottawa-on-ca", "ON", "CA")
	withPoint.Point = model.NewPoint(-75.6972, 45.4215)
	require.NoError(t, repos.City.Create(ctx, withPoint))
	require.NoError(t, repos.City.Create(ctx, newCity("Pointless", "pointless-on-ca", "ON", "CA")))
	abroad := newCity("Lyon", "lyon-69-fr", "69", "FR")
	abroad.Point = model.NewPoint(4.8357, 45.7640)
	require.NoError(t, repos.City.Create(ctx, abroad))

	all, err := repos.City.ListWithPoints(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ca, err := repos.City.ListWithPoints(ctx, "ca", nil)
	require.NoError(t, err)
	require.Len(t, ca, 1)
	assert.Equal(t, "Ottawa", ca[0].Name)

	t.Run("bounding box", func(t *testing.T) {
		europe := &model.BoundingBox{MinLat: 40, MaxLat: 50, MinLon: -5, MaxLon: 10}
		got, err := repos.City.ListWithPoints(ctx, "", europe)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Lyon", got[0].Name)

		got, err = repos.City.ListWithPoints(ctx, "CA", europe)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("box follows a moved point", func(t *testing.T) {
		withPoint.Point = model.NewPoint(4.85, 45.75)
		require.NoError(t, repos.City.Update(ctx, withPoint))

		got, err := repos.City.ListWithPoints(ctx, "", &model.BoundingBox{MinLat: 45, MaxLat: 46, MinLon: 4, MaxLon: 5})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestPostalCodeRepository_Lookups(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	toronto := newCity("Toronto", "toronto-on-ca", "ON", "CA")
	require.NoError(t, repos.City.Create(ctx, toronto))
	beverly := newCity("Beverly Hills", "beverly-hills-ca-us", "CA", "US")
	require.NoError(t, repos.City.Create(ctx, beverly))

	pc := &model.PostalCode{CityID: &toronto.ID, Code: "M5V2T6", Point: model.NewPoint(-79.39, 43.64), Updated: jan1}
	require.NoError(t, repos.PostalCode.Create(ctx, pc))
	assert.NotZero(t, pc.ID)

	us := &model.PostalCode{CityID: &beverly.ID, Code: "90210", Updated: jan1}
	require.NoError(t, repos.PostalCode.Create(ctx, us))

	orphan := &model.PostalCode{Code: "K1A0B1", Updated: jan1}
	require.NoError(t, repos.PostalCode.Create(ctx, orphan))

	t.Run("scoped by country", func(t *testing.T) {
		got, err := repos.PostalCode.FindByCodeInCountry(ctx, "M5V2T6", "CA")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, pc.ID, got.ID)
		require.NotNil(t, got.City)
		assert.Equal(t, "Toronto", got.City.Name)
		assert.Equal(t, "ON", got.City.Province)
		assert.True(t, model.PointsEqual(pc.Point, got.Point))

		got, err = repos.PostalCode.FindByCodeInCountry(ctx, "M5V2T6", "US")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unassigned", func(t *testing.T) {
		got, err := repos.PostalCode.FindUnassigned(ctx, "K1A0B1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Nil(t, got.CityID)
		assert.Nil(t, got.City)

		// linked codes are not unassigned
		got, err = repos.PostalCode.FindUnassigned(ctx, "M5V2T6")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("multiple matches", func(t *testing.T) {
		dup := &model.PostalCode{Code: "K1A0B1", Updated: jan1}
		require.NoError(t, repos.PostalCode.Create(ctx, dup))

		_, err := repos.PostalCode.FindUnassigned(ctx, "K1A0B1")
		assert.ErrorIs(t, err, ErrMultipleResults)
	})

	t.Run("update relinks", func(t *testing.T) {
		orphan.CityID = &toronto.ID
		orphan.Point = model.NewPoint(-75.7, 45.42)
		require.NoError(t, repos.PostalCode.Update(ctx, orphan))

		got, err := repos.PostalCode.FindByCodeInCountry(ctx, "K1A0B1", "CA")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, orphan.ID, got.ID)
		assert.True(t, model.PointsEqual(orphan.Point, got.Point))
	})
}

func TestPostalCodeRepository_Search(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	toronto := newCity("Toronto", "toronto-on-ca", "ON", "CA")
	require.NoError(t, repos.City.Create(ctx, toronto))
	ottawa := newCity("Ottawa", "ottawa-on-ca", "ON", "CA")
	require.NoError(t, repos.City.Create(ctx, ottawa))

	for _, p := range []*model.PostalCode{
		{CityID: &toronto.ID, Code: "M5V2T6", Updated: jan1},
		{CityID: &toronto.ID, Code: "M4C1B5", Updated: jan1},
		{CityID: &ottawa.ID, Code: "K1A0B1", Updated: jan1},
		{Code: "M9Z9Z9", Updated: jan1},
	} {
		require.NoError(t, repos.PostalCode.Create(ctx, p))
	}

	got, err := repos.PostalCode.Search(ctx, model.PostalCodeFilter{Query: "m5v 2t6"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "M5V2T6", got[0].Code)
	require.NotNil(t, got[0].City)
	assert.Equal(t, "Toronto", got[0].City.Name)

	got, err = repos.PostalCode.Search(ctx, model.PostalCodeFilter{Query: "ottawa"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "K1A0B1", got[0].Code)

	got, err = repos.PostalCode.Search(ctx, model.PostalCodeFilter{Query: "M"})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = repos.PostalCode.Search(ctx, model.PostalCodeFilter{Country: "CA", Province: "ON", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPostalCodeRepository_ExportRows(t *testing.T) {
	repos := setupRepo(t)
	ctx := context.Background()

	toronto := newCity("Toronto", "toronto-on-ca", "ON", "CA")
	toronto.Point = model.NewPoint(-79.3832, 43.6532)
	require.NoError(t, repos.City.Create(ctx, toronto))

	require.NoError(t, repos.PostalCode.Create(ctx, &model.PostalCode{
		CityID: &toronto.ID, Code: "M5V2T6", Point: model.NewPoint(-79.3871, 43.6426), Updated: jan1,
	}))
	require.NoError(t, repos.PostalCode.Create(ctx, &model.PostalCode{Code: "A0A0A0", Updated: jan1}))

	var rows []model.PostalCodeExportRow
	err := repos.PostalCode.ExportRows(ctx, func(row model.PostalCodeExportRow) error {
		rows = append(rows, row)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	orphan := rows[0]
	assert.Equal(t, "A0A0A0", orphan.Code)
	assert.Nil(t, orphan.CityName)
	assert.Nil(t, orphan.CityUpdated)
	assert.Nil(t, orphan.Point)
	assert.Nil(t, orphan.CityPoint)

	linked := rows[1]
	assert.Equal(t, "M5V2T6", linked.Code)
	require.NotNil(t, linked.CityName)
	assert.Equal(t, "Toronto", *linked.CityName)
	assert.Equal(t, "ON", *linked.Province)
	assert.Equal(t, "CA", *linked.Country)
	require.NotNil(t, linked.CityUpdated)
	require.NotNil(t, linked.Point)
	assert.Contains(t, *linked.Point, "-79.3871")
	require.NotNil(t, linked.CityPoint)
	assert.Contains(t, *linked.CityPoint, "43.6532")
}

func TestRepositories_CustomTables(t *testing.T) {
	db, _ := setupDB(t)
	ctx := context.Background()

	rename := strings.NewReplacer("postal_codes", "geo_postalcode", "cities", "geo_city")
	for _, name := range []string{"sqlite/000001_init.up.sql", "sqlite/000002_city_lat_lon.up.sql"} {
		schema, err := migrations.FS.ReadFile(name)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, rename.Replace(string(schema)))
		require.NoError(t, err)
	}

	repos := NewRepositories(db, config.DBTypeMemory, config.TableConfig{City: "geo_city", PostalCode: "geo_postalcode"})

	city := newCity("Halifax", "halifax-ns-ca", "NS", "CA")
	require.NoError(t, repos.City.Create(ctx, city))
	require.NoError(t, repos.PostalCode.Create(ctx, &model.PostalCode{CityID: &city.ID, Code: "B3H1A1", Updated: jan1}))

	got, err := repos.PostalCode.FindByCodeInCountry(ctx, "B3H1A1", "CA")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Halifax", got.City.Name)

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM geo_city"))
	assert.Equal(t, 1, count)
}
