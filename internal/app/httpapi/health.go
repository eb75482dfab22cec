package httpapi

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/R3E-Network/opxpress/internal/httputil"
)

type healthResponse struct {
	Status     string        `json:"status"`
	Uptime     string        `json:"uptime"`
	UptimeSec  float64       `json:"uptime_seconds"`
	Goroutines int           `json:"goroutines"`
	Memory     *memoryReport `json:"memory,omitempty"`
}

type memoryReport struct {
	RSS       uint64  `json:"rss_bytes"`
	VMS       uint64  `json:"vms_bytes"`
	Percent   float32 `json:"percent"`
	HeapAlloc uint64  `json:"heap_alloc_bytes"`
}

func healthHandler(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(started)
		resp := healthResponse{
			Status:     "ok",
			Uptime:     uptime.Round(time.Second).String(),
			UptimeSec:  uptime.Seconds(),
			Goroutines: runtime.NumGoroutine(),
		}

		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		report := &memoryReport{HeapAlloc: ms.HeapAlloc}
		// Process stats are best effort; some sandboxes hide /proc.
		if proc, err := process.NewProcessWithContext(r.Context(), int32(os.Getpid())); err == nil {
			if info, err := proc.MemoryInfoWithContext(r.Context()); err == nil {
				report.RSS = info.RSS
				report.VMS = info.VMS
			}
			if pct, err := proc.MemoryPercentWithContext(r.Context()); err == nil {
				report.Percent = pct
			}
		}
		resp.Memory = report

		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
