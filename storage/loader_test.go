package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rental-pricer/models"
	"rental-pricer/utils"
)

const frenchListingsCSV = "\xef\xbb\xbfnom;commune;code_postal;epis_gdf;type_logement;capacite;surface_m2;saison;jour_semaine;prix_par_nuit_ttc;piscine;spa_bain_nordique;climatisation;jardin_prive;wifi;animaux_acceptes\n" +
	"Gîte A;Sarlat;24200;3;gite;6;95;haute;weekend;120;1;0;0;1;1;0\n" +
	"Gîte B;Sarlat;24200.0;3.0;gite;4;60;haute;semaine;\"95,50\";0;0;1;0;1;1\n" +
	";;;;;;;;;;;;;;;\n" +
	"Gîte C;Domme;24250;;gite;;;basse;semaine;;0;0;0;0;0;0\n"

const frenchParamsCSV = "cle;valeur\nfiltre_capacite_plus_moins;3\nfacteur_piscine_pct;15\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileCSVDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "listings.csv", frenchListingsCSV)
	writeFile(t, dir, "parameters.csv", frenchParamsCSV)

	ds, err := NewLoader(utils.Discard()).LoadFile(dir)
	require.NoError(t, err)

	require.Len(t, ds.Listings, 3)
	assert.True(t, ds.HasPriceColumn)
	assert.NotEmpty(t, ds.Hash)

	a := ds.Listings[0]
	assert.Equal(t, "Gîte A", a.Name)
	assert.Equal(t, "24200", a.PostalCode)
	require.NotNil(t, a.Stars)
	assert.Equal(t, 3, *a.Stars)
	assert.True(t, a.Features.Pool)
	assert.True(t, a.Features.PrivateGarden)

	b := ds.Listings[1]
	assert.Equal(t, "24200", b.PostalCode)
	require.NotNil(t, b.PricePerNight)
	assert.InDelta(t, 95.5, *b.PricePerNight, 1e-9)
	assert.True(t, b.Features.PetsAllowed)

	c := ds.Listings[2]
	assert.Nil(t, c.Stars)
	assert.Nil(t, c.Capacity)
	assert.Nil(t, c.PricePerNight)

	assert.Equal(t, "3", ds.Parameters["filtre_capacite_plus_moins"])
	assert.Equal(t, "15", ds.Parameters["facteur_piscine_pct"])
}

func TestLoadFileCSVWithoutParameters(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gites.csv", "name,commune,price_per_night\nA,Sarlat,100\n")

	ds, err := NewLoader(utils.Discard()).LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, ds.Listings, 1)
	assert.Empty(t, ds.Parameters)
}

func TestLoadFileMissingPriceColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "listings.csv", "name,commune\nA,Sarlat\n")

	ds, err := NewLoader(utils.Discard()).LoadFile(path)
	require.NoError(t, err)
	assert.False(t, ds.HasPriceColumn)
}

func TestLoadFileMissingListings(t *testing.T) {
	_, err := NewLoader(utils.Discard()).LoadFile(t.TempDir())
	assert.ErrorIs(t, err, ErrMissingTable)
}

func TestLoadBytesUnsupported(t *testing.T) {
	_, err := NewLoader(utils.Discard()).LoadBytes("data.json", []byte("{}"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadBytesCachesByContent(t *testing.T) {
	loader := NewLoader(utils.Discard())
	content := []byte("name,price_per_night\nA,100\n")

	first, err := loader.LoadBytes("a.csv", content)
	require.NoError(t, err)
	second, err := loader.LoadBytes("renamed.csv", content)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.Cache().Len())
}

func TestParameterMapWithoutHeader(t *testing.T) {
	params := parameterMap([][]string{
		{"seuil_outliers_sigma", "2.5"},
		{"", "ignored"},
		{"facteur_wifi_pct"},
	})
	assert.Equal(t, map[string]string{
		"seuil_outliers_sigma": "2.5",
		"facteur_wifi_pct":     "",
	}, params)
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1,5;2;3")))
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c\n1;2;3")))
}

func buildWorkbook(t *testing.T, listingsSheet string, rows [][]any, params [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(listingsSheet)
	require.NoError(t, err)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(listingsSheet, cell, &r))
	}
	if params != nil {
		_, err := f.NewSheet("parametres")
		require.NoError(t, err)
		for i, row := range params {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow("parametres", cell, &r))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadBytesXLSX(t *testing.T) {
	content := buildWorkbook(t, "hebergements",
		[][]any{
			{"nom", "commune", "code_postal", "epis_gdf", "capacite", "surface_m2", "prix_par_nuit_ttc", "piscine"},
			{"Gîte A", "Sarlat", 24200, 3, 6, 95.5, 120, 1},
			{"Gîte B", "Sarlat", 24200, 2, 4, 60, 80, 0},
		},
		[][]any{
			{"cle", "valeur"},
			{"seuil_outliers_sigma", 2.5},
		})

	ds, err := NewLoader(utils.Discard()).LoadBytes("modele.xlsx", content)
	require.NoError(t, err)

	require.Len(t, ds.Listings, 2)
	assert.True(t, ds.HasPriceColumn)
	a := ds.Listings[0]
	assert.Equal(t, "24200", a.PostalCode)
	require.NotNil(t, a.SurfaceM2)
	assert.InDelta(t, 95.5, *a.SurfaceM2, 1e-9)
	require.NotNil(t, a.PricePerNight)
	assert.InDelta(t, 120.0, *a.PricePerNight, 1e-9)
	assert.True(t, a.Features.Pool)
	assert.False(t, ds.Listings[1].Features.Pool)

	assert.Equal(t, "2.5", ds.Parameters["seuil_outliers_sigma"])
}

func TestLoadBytesXLSXMissingListingsSheet(t *testing.T) {
	content := buildWorkbook(t, "autre", [][]any{{"nom"}, {"A"}}, nil)

	_, err := NewLoader(utils.Discard()).LoadBytes("modele.xlsx", content)
	assert.ErrorIs(t, err, ErrMissingTable)
}

func TestDatasetCachePutKeepsFirst(t *testing.T) {
	c := NewDatasetCache()
	first := &models.Dataset{Hash: "h"}
	second := &models.Dataset{Hash: "h"}

	assert.Same(t, first, c.Put(first))
	assert.Same(t, first, c.Put(second))

	got, ok := c.Get("h")
	require.True(t, ok)
	assert.Same(t, first, got)
	_, ok = c.Get("missing")
	assert.False(t, ok)
}
