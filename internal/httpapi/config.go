package httpapi

import "time"

// maxBodyBytes bounds JSON request bodies (chat).
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes sets the JSON body limit; non-positive restores 1 MiB.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// maxUploadBytes bounds multipart uploads (CSV and images).
var maxUploadBytes int64 = 32 << 20

// SetMaxUploadBytes sets the upload limit; non-positive restores 32 MiB.
func SetMaxUploadBytes(n int64) {
	if n <= 0 {
		maxUploadBytes = 32 << 20
		return
	}
	maxUploadBytes = n
}

// requestTimeout bounds handler work; zero means no extra deadline beyond
// server and connection timeouts.
var requestTimeout time.Duration

// SetRequestTimeout sets the per-request deadline (0 disables).
func SetRequestTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	requestTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled          bool
	corsAllowedOrigins   []string
	corsAllowedMethods   []string
	corsAllowedHeaders   []string
	corsAllowCredentials bool
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string, credentials bool) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
	corsAllowCredentials = credentials
}

// swaggerEnabled mounts /swagger/* on every router.
var swaggerEnabled bool

// SetSwaggerEnabled toggles the API docs UI.
func SetSwaggerEnabled(on bool) { swaggerEnabled = on }
