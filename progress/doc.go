// Package progress keeps aggregated allocation counters for a scheduler
// instance so that hosts can observe activity without scraping metrics.
package progress
