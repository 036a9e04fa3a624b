// Package catalog defines the record model shared by the crawl driver, the
// resume store, and the checkpoint writer: records keyed by numeric item id,
// the column schema used to render them, the in-memory record table, and the
// crawl target derived from user input.
package catalog
