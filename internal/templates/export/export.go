package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"template-store/internal/models"
)

// Format selects the encoding of an exported download bundle.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a query-string value to a Format; empty means JSON.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(value) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", ErrUnknownFormat
	}
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Render encodes a download bundle in the requested format.
func Render(bundle *models.DownloadBundle, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(bundle, "", "  ")
	case FormatCSV:
		return renderCSV(bundle.Templates)
	case FormatText:
		return renderText(bundle), nil
	default:
		return nil, ErrUnknownFormat
	}
}

func renderCSV(templates []models.Template) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"title", "category", "narrative", "promptContent", "trendIntensity", "energyScore"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, t := range templates {
		record := []string{
			t.Title,
			t.Category,
			t.Narrative,
			t.PromptContent,
			strconv.Itoa(t.TrendIntensity),
			strconv.Itoa(t.EnergyScore),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderText(bundle *models.DownloadBundle) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "%s - purchased %s\n\n", bundle.BundleName, bundle.PurchaseDate.Format("2006-01-02"))
	for i, t := range bundle.Templates {
		fmt.Fprintf(&b, "%d. %s [%s]\n", i+1, t.Title, t.Category)
		fmt.Fprintf(&b, "%s\n\n", t.PromptContent)
	}

	return []byte(b.String())
}
