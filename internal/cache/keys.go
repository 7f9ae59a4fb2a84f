package cache

import "fmt"

const activeStylesKey = "styles:active"

func JobStatusKey(jobID int64) string {
	return fmt.Sprintf("job:%d:status", jobID)
}

// RateLimitKey holds the request counter of one user's current window.
func RateLimitKey(userID int64) string {
	return fmt.Sprintf("ratelimit:user:%d", userID)
}

// ActiveStylesKey holds the JSON-encoded active style catalog.
func ActiveStylesKey() string {
	return activeStylesKey
}
