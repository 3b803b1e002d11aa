package store

import "errors"

// ErrNotFound is returned when a delivery record does not exist
var ErrNotFound = errors.New("record not found in store")

// columns that UpdateFields may touch. Anything else is a programming
// error and is rejected before it reaches the database.
var allowedColumns = map[string]bool{
	"content_text":    true,
	"url_list":        true,
	"attachment_list": true,
	"vt_url_result":   true,
	"vt_ip_result":    true,
	"vt_file_result":  true,
	"sandbox_result":  true,
	"ai_result":       true,
	"ai_reason":       true,
	"phishing_type":   true,
	"final_decision":  true,
	"is_alert":        true,
	"is_block":        true,
}
