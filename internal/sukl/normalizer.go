package sukl

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/DigiMedic/PillSee/pkg/errors"

	"github.com/DigiMedic/PillSee/internal/model"
)

// SÚKL exports ship in several encodings; the legacy dumps are
// windows-1250, the open-data portal serves UTF-8.
const (
	encodingWindows1250 = "windows-1250"
	encodingUTF8        = "utf-8"
	encodingISO88592    = "iso-8859-2"
	encodingWindows1252 = "windows-1252"
)

var supportedEncodings = []string{
	encodingWindows1250,
	encodingUTF8,
	encodingISO88592,
	encodingWindows1252,
}

var delimiters = []rune{',', ';', '\t'}

// detectSampleSize bounds how much of the file feeds the charset detector.
const detectSampleSize = 100_000

// minColumns is the parse acceptance heuristic: the first
// (encoding, delimiter) pair producing a table wider than this is taken as
// correct. It is a proxy for "parsed correctly", not a guarantee; a
// malformed file that splits into more than 5 spurious columns under the
// wrong pair is silently accepted. Kept for compatibility with existing
// SÚKL inputs.
const minColumns = 5

// Table is a parsed CSV export: ordered header plus one RawRecord per row.
type Table struct {
	Columns []string
	Rows    []model.RawRecord
}

// Normalizer converts heterogeneous SÚKL CSV exports into canonical
// medication records with best-effort encoding and delimiter recovery.
type Normalizer struct {
	detector *chardet.Detector
}

func NewNormalizer() *Normalizer {
	return &Normalizer{detector: chardet.NewTextDetector()}
}

// LoadCSV reads and parses a SÚKL CSV file. It fails with UnreadableSource
// only when the file cannot be read at all; a parseable file of unexpected
// shape is accepted under the best heuristic.
func (n *Normalizer) LoadCSV(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewUnreadableSource(path, err)
	}
	log.Info().Str("path", path).Int("bytes", len(data)).Msg("loading SÚKL data")
	return n.Parse(data)
}

// Parse recovers encoding and delimiter from raw file bytes and returns the
// cleaned table. It never fails on syntactically odd input; the final
// fallback forces windows-1250 with ';' and replacement decoding.
func (n *Normalizer) Parse(data []byte) (*Table, error) {
	for _, enc := range n.encodingCandidates(data) {
		text, ok := decode(data, enc)
		if !ok {
			log.Debug().Str("encoding", enc).Msg("encoding rejected")
			continue
		}
		for _, sep := range delimiters {
			table, err := parseCSV(text, sep)
			if err != nil {
				log.Debug().Str("encoding", enc).Str("delimiter", string(sep)).Err(err).Msg("parse attempt failed")
				continue
			}
			if len(table.Columns) > minColumns {
				log.Info().
					Str("encoding", enc).
					Str("delimiter", string(sep)).
					Int("rows", len(table.Rows)).
					Msg("SÚKL data parsed")
				return cleanTable(table), nil
			}
		}
	}

	log.Warn().Msg("no encoding/delimiter candidate accepted, forcing windows-1250 with ';'")
	text, _ := decode(data, encodingWindows1250)
	table := parseCSVLenient(text, ';')
	return cleanTable(table), nil
}

// encodingCandidates returns the detected encoding (when the detector is
// confident enough) followed by the fixed retry list.
func (n *Normalizer) encodingCandidates(data []byte) []string {
	sample := data
	if len(sample) > detectSampleSize {
		sample = sample[:detectSampleSize]
	}

	candidates := make([]string, 0, len(supportedEncodings)+1)
	if result, err := n.detector.DetectBest(sample); err == nil {
		log.Debug().
			Str("charset", result.Charset).
			Int("confidence", result.Confidence).
			Msg("detected encoding")
		if result.Confidence > 80 {
			candidates = append(candidates, strings.ToLower(result.Charset))
		}
	}
	return append(candidates, supportedEncodings...)
}

// decode converts raw bytes to UTF-8 text for the given encoding name.
// Unknown names are rejected; UTF-8 input must be valid to count as a
// candidate. The 8-bit decoders substitute the replacement rune for
// undefined bytes instead of failing.
func decode(data []byte, name string) (string, bool) {
	var dec *encoding.Decoder
	switch strings.ToLower(name) {
	case encodingUTF8:
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	case encodingWindows1250:
		dec = charmap.Windows1250.NewDecoder()
	case encodingISO88592:
		dec = charmap.ISO8859_2.NewDecoder()
	case encodingWindows1252, "iso-8859-1":
		dec = charmap.Windows1252.NewDecoder()
	default:
		return "", false
	}

	out, err := dec.Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// parseCSV parses text with one delimiter, requiring every row to be
// readable. Rows shorter or longer than the header are tolerated.
func parseCSV(text string, sep rune) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty table")
	}
	return buildTable(records), nil
}

// parseCSVLenient parses row by row and drops rows the reader chokes on.
// Used only by the forced fallback, which must never raise.
func parseCSVLenient(text string, sep rune) *Table {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return &Table{}
	}
	return buildTable(records)
}

func buildTable(records [][]string) *Table {
	columns := records[0]
	rows := make([]model.RawRecord, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(model.RawRecord, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return &Table{Columns: columns, Rows: rows}
}

// nullMarkers are literal strings normalized to the explicit null value.
var nullMarkers = map[string]struct{}{
	"":     {},
	"nan":  {},
	"NaN":  {},
	"null": {},
	"NULL": {},
}

// cleanTable trims every cell, normalizes null markers and drops rows that
// are null across every column. Diacritics are preserved verbatim.
func cleanTable(table *Table) *Table {
	cleaned := make([]model.RawRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		empty := true
		for col, value := range row {
			value = strings.TrimSpace(value)
			if _, isNull := nullMarkers[value]; isNull {
				row[col] = ""
				continue
			}
			row[col] = value
			empty = false
		}
		if !empty {
			cleaned = append(cleaned, row)
		}
	}
	log.Info().Int("rows", len(cleaned)).Msg("SÚKL data cleaned")
	return &Table{Columns: table.Columns, Rows: cleaned}
}

// columnAliases maps each canonical field to its known source column names,
// covering both the legacy upper-snake export dialect and the open-data
// lower-snake/diacritic dialect. First matching column wins.
var columnAliases = []struct {
	field   string
	aliases []string
}{
	{"name", []string{"NAZEV", "nazev", "název"}},
	{"active_ingredient", []string{"UCINNE_LATKY", "ucinne_latky", "účinné_látky"}},
	{"strength", []string{"SILA", "sila", "síla"}},
	{"form", []string{"LEKOVA_FORMA", "lekova_forma", "léková_forma", "FORMA"}},
	{"manufacturer", []string{"DRZITEL_ROZHODNUTI", "drzitel_rozhodnuti", "držitel_rozhodnutí", "DRZ"}},
	{"registration_number", []string{"REGISTRACNI_CISLO", "registracni_cislo", "registrační_číslo", "REG"}},
	{"atc_code", []string{"ATC_KOD", "atc_kod", "atc_kód", "ATC_WHO"}},
	{"indication", []string{"INDIKACE", "indikace"}},
	{"contraindication", []string{"KONTRAINDIKACE", "kontraindikace"}},
	{"side_effects", []string{"NEZADOUCI_UCINKY", "nezadouci_ucinky", "nežádoucí_účinky"}},
	{"interactions", []string{"INTERAKCE", "interakce"}},
	{"dosage", []string{"DAVKOVANI", "davkovani", "dávkování"}},
	{"price", []string{"CENA", "cena"}},
	{"prescription_required", []string{"PREDPISOVOST", "predpisovost", "VYDEJ"}},
}

// resolveColumns maps canonical fields to the columns actually present in
// the table. Fields with no matching column are absent for every row.
func resolveColumns(columns []string) map[string]string {
	present := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		present[col] = struct{}{}
	}

	mapping := make(map[string]string)
	for _, entry := range columnAliases {
		for _, alias := range entry.aliases {
			if _, ok := present[alias]; ok {
				mapping[entry.field] = alias
				break
			}
		}
	}
	return mapping
}

// ExtractRecords maps raw rows into canonical medication records. Rows
// missing a name, or missing both active ingredient and ATC code, are
// skipped. The official NKOD export carries ATC codes instead of active
// ingredients, so either satisfies the minimum.
func (n *Normalizer) ExtractRecords(table *Table) []model.MedicationRecord {
	mapping := resolveColumns(table.Columns)
	log.Debug().Interface("mapping", mapping).Msg("resolved column mapping")

	records := make([]model.MedicationRecord, 0, len(table.Rows))
	skipped := 0
	for _, row := range table.Rows {
		rec := recordFromRow(row, mapping)
		if !rec.Valid() {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	log.Info().
		Int("extracted", len(records)).
		Int("skipped", skipped).
		Msg("medication records extracted")
	return records
}

func recordFromRow(row model.RawRecord, mapping map[string]string) model.MedicationRecord {
	get := func(field string) string {
		col, ok := mapping[field]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	return model.MedicationRecord{
		Name:                 get("name"),
		ActiveIngredient:     get("active_ingredient"),
		Strength:             get("strength"),
		Form:                 get("form"),
		Manufacturer:         get("manufacturer"),
		RegistrationNumber:   get("registration_number"),
		ATCCode:              get("atc_code"),
		Indication:           get("indication"),
		Contraindication:     get("contraindication"),
		SideEffects:          get("side_effects"),
		Interactions:         get("interactions"),
		Dosage:               get("dosage"),
		Price:                get("price"),
		PrescriptionRequired: get("prescription_required"),
	}
}
