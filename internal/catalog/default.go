package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
)

//go:embed data/crops.json
var defaultCatalogJSON []byte

// Default builds the bundled Indian crop catalog
func Default() (*Catalog, error) {
	records, err := ParseJSON(bytes.NewReader(defaultCatalogJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bundled catalog: %w", err)
	}
	return New(records)
}
