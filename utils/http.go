// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound calls that don't need per-caller timeouts.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
