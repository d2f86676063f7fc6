package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"uniadmit-backend/docstore"
	"uniadmit-backend/docstore/cached"
	"uniadmit-backend/docstore/sqlitestore"
	"uniadmit-backend/lib/chrono"
	"uniadmit-backend/lib/configutil"
	"uniadmit-backend/lib/serviceutil"
	"uniadmit-backend/lib/telemetry"
	"uniadmit-backend/services/scraper"
)

type Config struct {
	Port     int    `json:"port"`
	Database string `json:"database"`
	// directory for the on-disk fetched-page cache, disabled when empty
	PageCacheDir        string `json:"page_cache_dir"`
	PageCacheTTLSeconds int    `json:"page_cache_ttl_seconds"`
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to write response", "err", err)
	}
}

func triggeredBy(r *http.Request) string {
	if by := r.URL.Query().Get("triggered_by"); by != "" {
		return by
	}
	return "api"
}

func main() {
	ctx := serviceutil.SignalContext()

	telemetry.SetupFromEnv(ctx, "scraperd")
	telemetry.InstrumentPerfStats(ctx)

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	db, err := sqlitestore.Open(config.Database)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	defer db.Close()
	store := cached.New(db)

	svc, err := scraper.NewService(scraper.Options{
		Store:        store,
		PageCacheDir: config.PageCacheDir,
		PageCacheTTL: time.Duration(config.PageCacheTTLSeconds) * time.Second,
		Listing:      scraper.PakEduCareers(),
		Profile:      scraper.QuaidIAzam(),
	})
	if err != nil {
		serviceutil.Fatal("failed to create scraper service", err)
	}
	defer svc.Close()

	cronner := chrono.NewStandardCron()
	defer cronner.Stop()
	err = svc.ScheduleStatusRecompute(cronner)
	if err != nil {
		serviceutil.Fatal("failed to schedule status recompute", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /scrape", func(w http.ResponseWriter, r *http.Request) {
		taskID, err := svc.StartTask(r.Context(), "", triggeredBy(r))
		if err != nil {
			writeJson(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		go func() {
			err := svc.ExecuteScrapeTask(context.Background(), taskID)
			if err != nil {
				slog.Error("scrape task failed", "task_id", taskID, "err", err)
			}
		}()
		writeJson(w, http.StatusAccepted, map[string]any{
			"task_id": taskID,
			"status":  scraper.TaskStatusStarted,
		})
	})
	mux.HandleFunc("POST /scrape/profile", func(w http.ResponseWriter, r *http.Request) {
		taskID, err := svc.StartTask(r.Context(), "profile", triggeredBy(r))
		if err != nil {
			writeJson(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		go func() {
			err := svc.ExecuteProfileScrapeTask(context.Background(), taskID)
			if err != nil {
				slog.Error("profile scrape task failed", "task_id", taskID, "err", err)
			}
		}()
		writeJson(w, http.StatusAccepted, map[string]any{
			"task_id": taskID,
			"status":  scraper.TaskStatusStarted,
		})
	})
	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		task, err := svc.Task(r.Context(), r.PathValue("id"))
		if errors.Is(err, docstore.ErrNotFound) {
			writeJson(w, http.StatusNotFound, map[string]any{"error": "task not found"})
			return
		}
		if err != nil {
			writeJson(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJson(w, http.StatusOK, task)
	})
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		tasks, err := svc.Tasks(r.Context())
		if err != nil {
			writeJson(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJson(w, http.StatusOK, map[string]any{"tasks": tasks})
	})

	serviceutil.StartHttpServer(config.Port, mux)
}
