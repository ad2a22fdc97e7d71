package api

import (
	"encoding/json"
	"log"
	"net/http"

	apperrors "parkhub/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("api: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	httpErr := apperrors.FromError(err)
	if httpErr.Code >= http.StatusInternalServerError {
		log.Printf("api: %v", err)
	}
	writeJSON(w, httpErr.Code, map[string]string{"error": httpErr.Message})
}
