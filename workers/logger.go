package workers

import "leadharvest/models"

// LogFunc writes a line to the ops database scrape_logs table.
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
