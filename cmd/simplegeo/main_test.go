package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexivanou/simple-geo/internal/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCommandEnv(t *testing.T) {
	t.Helper()
	cfg = &config.Config{
		DB: config.DBConfig{
			Type: config.DBTypeSQLite,
			Path: filepath.Join(t.TempDir(), "cli_"+uuid.NewString()+".db"),
		},
		Tables: config.TableConfig{City: "cities", PostalCode: "postal_codes"},
		Geocoder: config.GeocoderConfig{
			URL:     "http://127.0.0.1:0/unused",
			MaxWait: time.Millisecond,
		},
	}
	logger = zap.NewNop()
}

func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	require.NoError(t, cmd.Flags().Set(name, value))
	t.Cleanup(func() { _ = cmd.Flags().Set(name, "") })
}

func runCommand(t *testing.T, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func geonamesRow(name, lat, lon, country, admin1 string) string {
	cols := make([]string, 19)
	cols[1] = name
	cols[4] = lat
	cols[5] = lon
	cols[7] = "PPL"
	cols[8] = country
	cols[10] = admin1
	cols[18] = "2021-03-04"
	return strings.Join(cols, "\t")
}

func TestCommands_Registered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"import-cities", "import-postal-codes", "export-postal-codes", "geocode"} {
		assert.True(t, names[want], want)
	}

	for _, c := range []*cobra.Command{importCitiesCmd, importPostalCodesCmd} {
		assert.NotNil(t, c.Flags().Lookup("country"))
		assert.NotNil(t, c.Flags().Lookup("regions"))
	}
	assert.NotNil(t, exportPostalCodesCmd.Flags().Lookup("dir"))
	assert.NotNil(t, geocodeCmd.Flags().Lookup("code"))
}

func TestImportCommands_RequireFiles(t *testing.T) {
	assert.Error(t, importCitiesCmd.Args(importCitiesCmd, nil))
	assert.Error(t, importPostalCodesCmd.Args(importPostalCodesCmd, []string{}))
	assert.NoError(t, importCitiesCmd.Args(importCitiesCmd, []string{"CA.zip"}))
}

func TestImportCitiesCmd(t *testing.T) {
	setupCommandEnv(t)
	p := writeTemp(t, "CA.txt", strings.Join([]string{
		geonamesRow("Toronto", "43.70011", "-79.4163", "CA", "08"),
		geonamesRow("Ottawa", "45.41117", "-75.69812", "CA", "08"),
		geonamesRow("Calgary", "51.05011", "-114.08529", "CA", "01"),
	}, "\n")+"\n")

	setFlag(t, importCitiesCmd, "regions", "ON")
	out, err := runCommand(t, importCitiesCmd, []string{p})
	require.NoError(t, err)
	assert.Equal(t, "2 new cities created, 0 cities updated, 0 new postal codes created, 0 postal codes updated. 3 rows processed.\n", out)
}

func TestImportPostalCodesCmd(t *testing.T) {
	setupCommandEnv(t)
	p := writeTemp(t, "codes.csv",
		"code,city,region,country,code_longitude,code_latitude\n"+
			"m5v 2t6,Toronto,ON,CA,-79.3871,43.6426\n")

	out, err := runCommand(t, importPostalCodesCmd, []string{p})
	require.NoError(t, err)
	assert.Contains(t, out, "1 new cities created")
	assert.Contains(t, out, "1 new postal codes created")
}

func TestImportPostalCodesCmd_MissingColumns(t *testing.T) {
	setupCommandEnv(t)
	p := writeTemp(t, "codes.csv", "code,city\nM5V2T6,Toronto\n")

	_, err := runCommand(t, importPostalCodesCmd, []string{p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country")
}

func TestExportPostalCodesCmd(t *testing.T) {
	setupCommandEnv(t)
	exportDir = t.TempDir()

	out, err := runCommand(t, exportPostalCodesCmd, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "0 postal codes written to ")

	files, err := filepath.Glob(filepath.Join(exportDir, "export-*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "code,city,region,country,"))
}

func TestGeocodeCmd_RequiresQuery(t *testing.T) {
	setupCommandEnv(t)
	geocodeQuery.Address, geocodeQuery.Country = "", ""
	geocodeQuery.Region, geocodeQuery.City, geocodeQuery.PostalCode = "", "", ""

	_, err := runCommand(t, geocodeCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--address")
}

func TestImportCommands_OwnFlags(t *testing.T) {
	setFlag(t, importCitiesCmd, "country", "CA")

	country, err := importPostalCodesCmd.Flags().GetString("country")
	require.NoError(t, err)
	assert.Empty(t, country)
}

func TestStoreCommands_RefuseMemory(t *testing.T) {
	setupCommandEnv(t)
	cfg.DB = config.DBConfig{Type: config.DBTypeMemory, Name: "cli_" + uuid.NewString()}
	p := writeTemp(t, "codes.csv", "code,country\nM5V2T6,CA\n")

	_, err := runCommand(t, importPostalCodesCmd, []string{p})
	assert.ErrorIs(t, err, config.ErrImproperlyConfigured)

	exportDir = t.TempDir()
	_, err = runCommand(t, exportPostalCodesCmd, nil)
	assert.ErrorIs(t, err, config.ErrImproperlyConfigured)
}

func TestImportThenExport_DefaultConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{"DB_TYPE", "DB_PATH", "CITY_TABLE", "POSTALCODE_TABLE", "GEOCODER_CACHE_URL", "GEOCODER_API_KEY", "GEOCODER_MAX_QPS"} {
		t.Setenv(key, "")
	}
	t.Setenv("GEOCODER_URL", "http://127.0.0.1:0/unused")
	t.Setenv("GEOCODER_MIN_WAIT", "0s")
	t.Setenv("GEOCODER_MAX_WAIT", "1ms")

	c, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, config.DBTypeSQLite, c.DB.Type)
	cfg = c
	logger = zap.NewNop()

	p := writeTemp(t, "codes.csv",
		"code,city,region,country,code_longitude,code_latitude,city_longitude,city_latitude\n"+
			"M5V 2T6,Toronto,ON,CA,-79.3871,43.6426,-79.3832,43.6532\n")

	out, err := runCommand(t, importPostalCodesCmd, []string{p})
	require.NoError(t, err)
	assert.Contains(t, out, "1 new postal codes created")

	exportDir = dir
	out, err = runCommand(t, exportPostalCodesCmd, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "1 postal codes written to ")

	// a second run finds the stored rows
	out, err = runCommand(t, importPostalCodesCmd, []string{p})
	require.NoError(t, err)
	assert.Contains(t, out, "0 new cities created")
	assert.Contains(t, out, " 0 new postal codes created")

	_, err = os.Stat(filepath.Join(dir, "simplegeo.db"))
	assert.NoError(t, err)
}
