package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	userIDKey       contextKey = "user_id"
	apiKeyScopesKey contextKey = "api_key_scopes"
	requestInfoKey  contextKey = "request_info"
)

// requestInfo is shared by the outer Logger and Recovery with Authenticate,
// which runs deeper in the chain and cannot change the request they hold.
type requestInfo struct {
	userID    int64
	keyPrefix string
}

func withRequestInfo(ctx context.Context) (context.Context, *requestInfo) {
	info := &requestInfo{}
	return context.WithValue(ctx, requestInfoKey, info), info
}

func getRequestInfo(r *http.Request) *requestInfo {
	info, _ := r.Context().Value(requestInfoKey).(*requestInfo)
	return info
}

// identity returns the logging attributes of the authenticated caller, if any.
func (i *requestInfo) identity() []any {
	if i == nil || i.userID == 0 {
		return nil
	}
	return []any{"user_id", i.userID, "key_prefix", i.keyPrefix}
}

// SetUserID stores the id of the user acting on the request.
func SetUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// GetUserID returns the id of the user that owns the authenticating API key.
func GetUserID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(userIDKey).(int64)
	return id, ok
}

// SetScopes stores the scopes granted to the authenticating API key.
func SetScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, apiKeyScopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(apiKeyScopesKey).([]string)
	return scopes
}
