package handlers

import (
	"database/sql"
	"net/http"
	"time"
)

// HealthResponse reports service and database status.
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// Healthz returns a liveness handler that also pings the database.
func Healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbStatus := "connected"
		if err := db.PingContext(r.Context()); err != nil {
			dbStatus = "disconnected"
		}
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "healthy",
			Database:  dbStatus,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
