package i18n

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
)

//go:embed translations/*.csv
var bundled embed.FS

// loadBundled reads translations/<lang>.csv. The first row is a header.
// A language without a bundled file yields an empty dictionary.
func loadBundled(lang string) (map[string]string, error) {
	f, err := bundled.Open(path.Join("translations", lang+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return parseCSV(f)
}

func parseCSV(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	dict := make(map[string]string)
	header := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse translations: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(row) < 2 || row[0] == "" || row[1] == "" {
			continue
		}
		dict[row[0]] = row[1]
	}
	return dict, nil
}

// BundledLanguages lists the languages shipped with the binary
func BundledLanguages() []string {
	entries, err := fs.ReadDir(bundled, "translations")
	if err != nil {
		return nil
	}
	langs := make([]string, 0, len(entries))
	for _, e := range entries {
		if ext := path.Ext(e.Name()); ext == ".csv" {
			langs = append(langs, e.Name()[:len(e.Name())-len(ext)])
		}
	}
	return langs
}
