package devtools

import (
	"encoding/json"
	"net/http"

	"github.com/broady/dawnwire"
)

// response is the envelope type for successful responses.
// This wraps the actual result in a {"result": ...} structure.
type response struct {
	Result any `json:"result"`
}

// errorResponse is the envelope type for error responses.
// This wraps the error in an {"error": {...}} structure.
type errorResponse struct {
	Error *dawnwire.Error `json:"error"`
}

func writeResult(w http.ResponseWriter, result any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(response{Result: result})
}

func writeError(w http.ResponseWriter, err *dawnwire.Error) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code.HTTPStatus())
	return json.NewEncoder(w).Encode(errorResponse{Error: err})
}
