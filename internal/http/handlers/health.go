package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"gorm.io/gorm"

	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/pkg/httpclient"
)

// slowPingThreshold marks a database as slow in the health report.
const slowPingThreshold = 100 * time.Millisecond

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *gorm.DB
	clients   *httpclient.Registry
	passes    *ingestor.StateManager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database connection for health checks.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// WithClientRegistry reports the circuit breakers of registered clients.
func (h *HealthHandler) WithClientRegistry(clients *httpclient.Registry) *HealthHandler {
	h.clients = clients
	return h
}

// WithPasses reports how many sync passes are running.
func (h *HealthHandler) WithPasses(passes *ingestor.StateManager) *HealthHandler {
	h.passes = passes
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health with database, circuit breaker and memory details",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      "GET",
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      "GET",
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Description: "Ready when the database answers a ping",
		Tags:        []string{"System"},
	}, h.GetReadyz)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Memory        MemoryInfo        `json:"memory"`
	Components    HealthComponents  `json:"components"`
	Checks        map[string]string `json:"checks"`
}

// HealthComponents holds per-component health.
type HealthComponents struct {
	Database        DatabaseHealth                    `json:"database"`
	CircuitBreakers []httpclient.CircuitBreakerStatus `json:"circuit_breakers"`
	ActivePasses    int                               `json:"active_passes"`
}

// DatabaseHealth reports the catalog database.
type DatabaseHealth struct {
	Status             string  `json:"status"`
	ResponseTimeMS     float64 `json:"response_time_ms"`
	ResponseTimeStatus string  `json:"response_time_status"`
	ConnectionPoolSize int     `json:"connection_pool_size"`
	ActiveConnections  int     `json:"active_connections"`
	IdleConnections    int     `json:"idle_connections"`
}

// MemoryInfo reports system and process memory in MiB.
type MemoryInfo struct {
	TotalMemoryMB      float64 `json:"total_memory_mb"`
	AvailableMemoryMB  float64 `json:"available_memory_mb"`
	ProcessMemoryMB    float64 `json:"process_memory_mb"`
	PercentageOfSystem float64 `json:"percentage_of_system"`
	HeapAllocMB        float64 `json:"heap_alloc_mb"`
	Goroutines         int     `json:"goroutines"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// GetHealth returns the health status of the service. The status degrades
// when the database fails or a client circuit is open.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	db := h.getDatabaseHealth(ctx)
	components := HealthComponents{
		Database:        db,
		CircuitBreakers: []httpclient.CircuitBreakerStatus{},
	}
	checks := map[string]string{"database": db.Status, "source": "ok"}
	status := "healthy"

	if h.clients != nil {
		components.CircuitBreakers = h.clients.Statuses()
		if h.clients.AnyOpen() {
			checks["source"] = "circuit_open"
			status = "degraded"
		}
	}
	if h.passes != nil {
		components.ActivePasses = h.passes.ActiveCount()
	}
	if db.Status == "error" {
		status = "unhealthy"
	}

	return &HealthOutput{Body: HealthResponse{
		Status:        status,
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Memory:        getMemoryInfo(),
		Components:    components,
		Checks:        checks,
	}}, nil
}

// LivezInput is the input for the liveness probe.
type LivezInput struct{}

// LivezOutput is the output for the liveness probe.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// GetLivez reports that the process is serving requests.
func (h *HealthHandler) GetLivez(_ context.Context, _ *LivezInput) (*LivezOutput, error) {
	resp := &LivezOutput{}
	resp.Body.Status = "ok"
	return resp, nil
}

// ReadyzInput is the input for the readiness probe.
type ReadyzInput struct{}

// ReadyzOutput is the output for the readiness probe.
type ReadyzOutput struct {
	Body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
}

// GetReadyz reports whether the catalog database is reachable.
func (h *HealthHandler) GetReadyz(ctx context.Context, _ *ReadyzInput) (*ReadyzOutput, error) {
	resp := &ReadyzOutput{}
	resp.Body.Components = map[string]string{}

	switch {
	case h.db == nil:
		resp.Body.Components["database"] = "not_configured"
	case h.getDatabaseHealth(ctx).Status != "ok":
		resp.Body.Components["database"] = "error"
	default:
		resp.Body.Components["database"] = "ok"
	}

	resp.Body.Status = "ready"
	if resp.Body.Components["database"] != "ok" {
		resp.Body.Status = "not_ready"
	}
	return resp, nil
}

// getMemoryInfo reads system memory and the RSS of this process.
func getMemoryInfo() MemoryInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info := MemoryInfo{
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
		Goroutines:  runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.TotalMemoryMB = float64(vm.Total) / 1024 / 1024
		info.AvailableMemoryMB = float64(vm.Available) / 1024 / 1024
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	if pm, err := proc.MemoryInfo(); err == nil && pm != nil {
		info.ProcessMemoryMB = float64(pm.RSS) / 1024 / 1024
		if info.TotalMemoryMB > 0 {
			info.PercentageOfSystem = info.ProcessMemoryMB / info.TotalMemoryMB * 100
		}
	}
	return info
}

// getDatabaseHealth pings the database and reads pool statistics.
func (h *HealthHandler) getDatabaseHealth(ctx context.Context) DatabaseHealth {
	health := DatabaseHealth{Status: "ok", ResponseTimeStatus: "healthy"}
	if h.db == nil {
		health.Status = "unknown"
		return health
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		health.Status = "error"
		return health
	}

	stats := sqlDB.Stats()
	health.ConnectionPoolSize = stats.MaxOpenConnections
	health.ActiveConnections = stats.InUse
	health.IdleConnections = stats.Idle

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	elapsed := time.Since(start)
	health.ResponseTimeMS = float64(elapsed.Microseconds()) / 1000

	switch {
	case err != nil:
		health.Status = "error"
		health.ResponseTimeStatus = "error"
	case elapsed > slowPingThreshold:
		health.ResponseTimeStatus = "slow"
	}
	return health
}
