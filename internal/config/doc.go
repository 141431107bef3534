// Package config defines service settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds the HTTP listen address, the paths of the snapshot
// file and the log workbook, the alarm policy knobs and the Telegram
// credentials. Credentials are never persisted to YAML; they come from the
// environment (optionally via a .env file).
package config
