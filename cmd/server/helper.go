package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/tokendash/internal/model"
)

// parseCategories turns the comma-separated categories query parameter
// into category values. An empty parameter selects every category; an
// unknown name is a client error.
func parseCategories(raw string) ([]model.Category, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	cats := make([]model.Category, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		cat, err := model.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("unknown category %q", name)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// writeJSON encodes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}

// errorResponse returns a formatted error response.
func (s *Server) errorResponse(w http.ResponseWriter, endpoint string, statusCode int, errorMsg string) {
	logrus.Warn(errorMsg)

	if s.metrics != nil {
		s.metrics.requestCounter.WithLabelValues(endpoint, "error").Inc()
	}

	writeJSON(w, statusCode, map[string]any{
		"status": "error",
		"error":  errorMsg,
	})
}
