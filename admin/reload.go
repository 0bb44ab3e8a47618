package admin

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configReloadSchema is the JSON-schema shape a directory-scanner's
// match/reject description must satisfy before /reload accepts it.
// Grounded on the teacher's cmd/schema-exporter/validate.go, which
// validates a submitted document against a schema before acting on it.
const configReloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "match": {"type": "string"},
    "reject": {"type": "string"}
  },
  "additionalProperties": true
}`

// handleReload validates the POST body as a directory-scanner description
// against configReloadSchema, then hands the raw bytes to s.Reload.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	schemaLoader := gojsonschema.NewStringLoader(configReloadSchema)
	docLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		http.Error(w, "schema validation error: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		http.Error(w, "invalid reload payload: "+strings.Join(msgs, "; "), http.StatusBadRequest)
		return
	}

	if err := s.Reload(body); err != nil {
		http.Error(w, "reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
