// Package sheetlog implements the durable append-only log as an xlsx
// workbook on disk.
//
// Rows are grouped into monthly partitions: one worksheet per calendar
// year-month, created lazily with a fixed header on first write and never
// deleted. Append recovers from a stale workbook handle by re-opening the
// file exactly once before giving up with ErrLogUnavailable.
package sheetlog
