package response

import (
	"encoding/json"
	"net/http"
	"regexp"
)

var callbackName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]{0,127}$`)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ValidCallback guards the callback name that is echoed into a script body.
func ValidCallback(name string) bool {
	return callbackName.MatchString(name)
}

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: statusCode < 400,
		Data:    data,
	})
}

// Callback writes payload wrapped in a call to the named function. The
// status is always 200 so the caller's callback fires even for failures.
func Callback(w http.ResponseWriter, callback string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"success":false,"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("/**/" + callback + "("))
	w.Write(body)
	w.Write([]byte(");"))
}

// Beacon acknowledges a fire-and-forget request with an empty body.
func Beacon(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}

func Error(w http.ResponseWriter, statusCode int, err string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   err,
	})
}

func BadRequest(w http.ResponseWriter, err string) {
	Error(w, http.StatusBadRequest, err)
}

func Unauthorized(w http.ResponseWriter, err string) {
	Error(w, http.StatusUnauthorized, err)
}
