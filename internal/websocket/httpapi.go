package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// MetricsHandler отдает снимок метрик хаба в JSON
func MetricsHandler(hub Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.GetMetrics()); err != nil {
			http.Error(w, "failed to encode metrics", http.StatusInternalServerError)
		}
	}
}

// HealthHandler отвечает 200, пока хаб способен принимать соединения
func HealthHandler(hub Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"clients": hub.ClientCount(),
		})
	}
}

// PrometheusHandler отдает метрики хаба в текстовом формате Prometheus
func PrometheusHandler(hub Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		snapshot := hub.GetMetrics()
		keys := make([]string, 0, len(snapshot))
		for k := range snapshot {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			switch v := snapshot[key].(type) {
			case int:
				fmt.Fprintf(w, "quiznight_ws_%s %d\n", key, v)
			case int64:
				fmt.Fprintf(w, "quiznight_ws_%s %d\n", key, v)
			case map[string]int64:
				for label, count := range v {
					fmt.Fprintf(w, "quiznight_ws_%s{type=%q} %d\n", key, label, count)
				}
			}
		}
	}
}
