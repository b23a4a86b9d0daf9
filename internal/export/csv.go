// Package export serializes a user's contacts for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/contacthub/contacthub/internal/contacts"
)

var header = []string{"name", "email", "tags"}

// WriteCSV writes a header row followed by one row per contact. Tags are
// joined with commas into a single field.
func WriteCSV(w io.Writer, list []contacts.Contact) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range list {
		if err := cw.Write([]string{c.Name, c.Email, strings.Join(c.Tags, ",")}); err != nil {
			return fmt.Errorf("write contact %s: %w", c.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
