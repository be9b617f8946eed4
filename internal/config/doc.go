// Package config provides configuration structures and utilities for
// sitescraper: crawl limits, politeness settings, report selection, the
// optional per-site YAML file and the XDG directories used for the history
// database.
package config
