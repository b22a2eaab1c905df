package pdfstow

import (
	"bytes"
	"fmt"
)

// The listing page is purely cosmetic: a viewer renders it, the decoder
// never reads it. It shares no objects with the catalog, so a damaged
// page can never affect extraction.

// listingFont is the resource name the content stream selects; it is
// bound to the built-in Courier font, so no font program is embedded.
const listingFont = "F1"

// buildListing renders the file table as a positioned-text content
// stream: title, file count, column headers, one row per entry.
func buildListing(entries []FileEntry) []byte {
	var b bytes.Buffer

	b.WriteString("BT\n")
	fmt.Fprintf(&b, "/%s 12 Tf\n", listingFont)
	b.WriteString("50 750 Td\n")
	b.WriteString("(PDFSTOW Archive) Tj\n")
	b.WriteString("0 -20 Td\n")
	fmt.Fprintf(&b, "/%s 10 Tf\n", listingFont)
	fmt.Fprintf(&b, "(Archive contains %d files) Tj\n", len(entries))
	b.WriteString("0 -25 Td\n")

	fmt.Fprintf(&b, "/%s 9 Tf\n", listingFont)
	b.WriteString("(Filename) Tj\n")
	b.WriteString("300 0 Td\n")
	b.WriteString("(Size) Tj\n")
	b.WriteString("100 0 Td\n")
	b.WriteString("(Modified) Tj\n")
	b.WriteString("-400 -15 Td\n")

	for _, e := range entries {
		fmt.Fprintf(&b, "(%s) Tj\n", escapeText(e.Path))
		b.WriteString("300 0 Td\n")
		fmt.Fprintf(&b, "(%s) Tj\n", FormatSize(e.Size))
		b.WriteString("100 0 Td\n")
		if e.ModTime.IsZero() {
			b.WriteString("(N/A) Tj\n")
		} else {
			fmt.Fprintf(&b, "(%s) Tj\n", e.ModTime.Format("2006-01-02 15:04"))
		}
		b.WriteString("-400 -12 Td\n")
	}

	b.WriteString("ET\n")
	return b.Bytes()
}

// escapeText makes s safe inside a literal text-showing operand. Bytes
// outside printable ASCII are dropped; the table is a courtesy view, not
// the round-trip record.
func escapeText(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < ' ' || c > '~' {
			continue
		}
		if c == '\\' || c == '(' || c == ')' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

// FormatSize renders a byte count in human-readable units. Shared by the
// listing page and the CLI table output.
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
