// Package output renders the record table to its persisted formats: an XLSX
// workbook as the primary table and a CSV mirror with the same rows. It also
// owns the naming of canonical, temporary, and fallback files.
package output

import (
	"fmt"
	"time"
)

// File extensions of the two artifacts.
const (
	ExtXLSX = "xlsx"
	ExtCSV  = "csv"
)

const stampLayout = "20060102_150405"

// Naming derives artifact names from a basename such as "product_total".
type Naming struct {
	Basename string
}

// Canonical returns the stable name, e.g. product_total.xlsx.
func (n Naming) Canonical(ext string) string {
	return fmt.Sprintf("%s.%s", n.Basename, ext)
}

// Temp returns a unique temporary name, e.g. product_total.tmp.<token>.xlsx.
func (n Naming) Temp(ext, token string) string {
	return fmt.Sprintf("%s.tmp.%s.%s", n.Basename, token, ext)
}

// Fallback returns the timestamped name used when the canonical file is
// locked, e.g. product_total_20260102_150405.xlsx.
func (n Naming) Fallback(ext string, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", n.Basename, at.Format(stampLayout), ext)
}
