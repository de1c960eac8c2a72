package controllers

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"mentiond/internal/feed/interfaces"
	"mentiond/internal/services"
)

type HealthController struct {
	service   services.FeedServiceInterface
	engine    interfaces.EngineInterface
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Stream        string  `json:"stream"`
	Initialized   bool    `json:"initialized"`
	FeedRecords   int     `json:"feed_records"`
	PendingEvents int     `json:"pending_events"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Stream:        hc.engine.State(),
		Initialized:   hc.service.Initialized(),
		FeedRecords:   hc.service.FeedLen(),
		PendingEvents: hc.service.PendingLen(),
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(service services.FeedServiceInterface, engine interfaces.EngineInterface) *HealthController {
	return &HealthController{
		service:   service,
		engine:    engine,
		startTime: time.Now(),
	}
}
