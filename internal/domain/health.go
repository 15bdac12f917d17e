package domain

// ============================================================
// Health & Status API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual collaborator.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LastChecked string `json:"lastChecked"`
}

// ConsoleStatus is returned by GET /v1/status.
type ConsoleStatus struct {
	Backend       string           `json:"backend"`
	Collections   []SliceStatus    `json:"collections"`
	Authenticated bool             `json:"authenticated"`
	Counters      map[string]int64 `json:"counters"`
}

// SliceStatus reports the load state of one subscription-fed slice.
type SliceStatus struct {
	Name    string `json:"name"`
	Loaded  bool   `json:"loaded"`
	Version uint64 `json:"version"`
	Size    int    `json:"size"`
}
