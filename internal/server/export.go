package server

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/civicbrief/civicbrief/internal/pipeline"
)

// handleExport streams the current snapshot as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()

	filename := fmt.Sprintf("civicbrief-%s.csv", time.Now().In(pipeline.IST).Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{
		"Title", "Category", "Source", "Language", "Score", "Reasoning", "Time", "URL",
	}); err != nil {
		slog.Error("csv export failed", "error", err)
		return
	}

	for _, item := range snap.Items {
		if err := cw.Write([]string{
			item.Title,
			item.Category,
			item.Source,
			item.Language,
			strconv.Itoa(item.FinalScore),
			item.Reasoning,
			item.PublishedAtIST,
			item.URL,
		}); err != nil {
			slog.Error("csv export failed", "error", err)
			return
		}
	}
}
