package sukl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func encodeWindows1250(t *testing.T, text string) []byte {
	t.Helper()
	out, err := charmap.Windows1250.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)
	return out
}

const legacyCSV = "NAZEV;UCINNE_LATKY;SILA;LEKOVA_FORMA;DRZITEL_ROZHODNUTI;DAVKOVANI\n" +
	"PARALEN 500;Paracetamolum;500mg;tablety;Zentiva;1-2 tablety po 4-6 hodinách\n" +
	"IBALGIN 400;Ibuprofenum;400mg;tablety;Zentiva;nan\n"

func TestParseLegacyExport(t *testing.T) {
	n := NewNormalizer()

	table, err := n.Parse(encodeWindows1250(t, legacyCSV))
	require.NoError(t, err)

	assert.Len(t, table.Columns, 6)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "PARALEN 500", table.Rows[0]["NAZEV"])
	assert.Equal(t, "1-2 tablety po 4-6 hodinách", table.Rows[0]["DAVKOVANI"])
	assert.Equal(t, "", table.Rows[1]["DAVKOVANI"], "nan normalized to empty")
}

func TestParseUTF8CommaExport(t *testing.T) {
	n := NewNormalizer()

	csv := "nazev,ucinne_latky,sila,lekova_forma,drzitel_rozhodnuti,indikace\n" +
		"BRUFEN 400,Ibuprofenum,400mg,potahované tablety,Mylan,bolest a horečka\n"
	table, err := n.Parse([]byte(csv))
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "BRUFEN 400", table.Rows[0]["nazev"])
	assert.Equal(t, "potahované tablety", table.Rows[0]["lekova_forma"])
}

func TestParseNeverFails(t *testing.T) {
	n := NewNormalizer()

	inputs := [][]byte{
		{},
		[]byte("\x00\x01\x02garbage\xff\xfe"),
		[]byte("jen jeden sloupec\nbez oddělovačů\n"),
		[]byte("a;b\n\"unterminated quote;1\n;;;;\n"),
	}
	for _, data := range inputs {
		table, err := n.Parse(data)
		require.NoError(t, err)
		require.NotNil(t, table)
	}
}

func TestParseDropsAllNullRows(t *testing.T) {
	n := NewNormalizer()

	csv := "NAZEV;UCINNE_LATKY;SILA;FORMA;DRZ;REG\n" +
		"PARALEN 500;Paracetamolum;500mg;tablety;Zentiva;54/153/70-C\n" +
		"NULL;nan;;null;NaN;\n"
	table, err := n.Parse(encodeWindows1250(t, csv))
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
}

func TestExtractRecords(t *testing.T) {
	n := NewNormalizer()

	csv := "NAZEV;UCINNE_LATKY;SILA;LEKOVA_FORMA;DRZITEL_ROZHODNUTI;ATC_KOD\n" +
		"PARALEN 500;Paracetamolum;500mg;tablety;Zentiva;N02BE01\n" +
		";Ibuprofenum;400mg;tablety;Zentiva;M01AE01\n" +
		"BEZ LATKY;;;;Zentiva;\n"
	table, err := n.Parse(encodeWindows1250(t, csv))
	require.NoError(t, err)

	records := n.ExtractRecords(table)
	require.Len(t, records, 1, "rows without name or without both ingredient and ATC are skipped")
	assert.Equal(t, "PARALEN 500", records[0].Name)
	assert.Equal(t, "Paracetamolum", records[0].ActiveIngredient)
	assert.Equal(t, "N02BE01", records[0].ATCCode)
}

func TestExtractRecordsATCOnly(t *testing.T) {
	n := NewNormalizer()

	// The NKOD export names substances only through ATC codes.
	csv := "nazev,sila,lekova_forma,drzitel_rozhodnuti,registracni_cislo,atc_kod\n" +
		"ASPIRIN 500,500mg,tablety,Bayer,54/002/71-C,N02BA01\n"
	table, err := n.Parse([]byte(csv))
	require.NoError(t, err)

	records := n.ExtractRecords(table)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].ActiveIngredient)
	assert.Equal(t, "N02BA01", records[0].ATCCode)
}

func TestResolveColumnsFirstAliasWins(t *testing.T) {
	mapping := resolveColumns([]string{"nazev", "NAZEV", "ATC_WHO", "atc_kod"})

	assert.Equal(t, "NAZEV", mapping["name"], "alias order decides, not column order")
	assert.Equal(t, "atc_kod", mapping["atc_code"])
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	_, ok := decode([]byte{0xff, 0xfe, 0x41}, "utf-8")
	assert.False(t, ok)

	text, ok := decode([]byte{0x41, 0x9E}, "windows-1250")
	require.True(t, ok)
	assert.Equal(t, "Až", text)
}
