package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"trimsync/internal/api"
	"trimsync/internal/config"
	"trimsync/internal/jobs"
	"trimsync/internal/logging"
	"trimsync/internal/logs"
	"trimsync/internal/queue"
	"trimsync/internal/services"
	"trimsync/internal/timeline"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger.With(logging.String(logging.FieldComponent, "api")),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJob)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: the events endpoint streams indefinitely.
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, for tests using port 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	dependencies := make([]api.DependencyStatus, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		dependencies = append(dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Health:       api.FromHealth(status.Health),
		Dependencies: dependencies,
	})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var statuses []queue.Status
		for _, value := range r.URL.Query()["status"] {
			if status, ok := queue.ParseStatus(value); ok {
				statuses = append(statuses, status)
			}
		}
		items, err := s.daemon.jobs.List(r.Context(), statuses...)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(items)})
	case http.MethodPost:
		req, err := s.decodeCreateRequest(r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "", err.Error())
			return
		}
		job, err := s.daemon.jobs.Create(r.Context(), jobs.CreateRequest{
			VideoPath: req.VideoPath,
			AudioPath: req.AudioPath,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.JobResponse{Job: api.FromJob(job)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
	}
}

// decodeCreateRequest accepts either a JSON body naming paths the daemon can
// read directly, or a multipart upload whose files are saved into the upload
// directory first.
func (s *apiServer) decodeCreateRequest(r *http.Request) (api.CreateJobRequest, error) {
	var req api.CreateJobRequest

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errors.New("invalid request body")
		}
		if strings.TrimSpace(req.VideoPath) == "" {
			return req, errors.New("videoPath is required")
		}
		return req, nil
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		return req, fmt.Errorf("parse upload: %w", err)
	}
	videoPath, err := s.saveUpload(r, "video")
	if err != nil {
		return req, err
	}
	if videoPath == "" {
		return req, errors.New("upload field \"video\" is required")
	}
	audioPath, err := s.saveUpload(r, "audio")
	if err != nil {
		return req, err
	}
	req.VideoPath = videoPath
	req.AudioPath = audioPath
	return req, nil
}

// saveUpload streams an optional multipart file field into the upload
// directory, prefixing the name to avoid collisions between jobs.
func (s *apiServer) saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read upload field %q: %w", field, err)
	}
	defer file.Close()

	uploadDir := s.daemon.cfg.Paths.UploadDir
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := uuid.NewString()[:8] + "-" + filepath.Base(header.Filename)
	dst := filepath.Join(uploadDir, name)

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

// handleJob routes /api/jobs/{id} and its sub-resources.
func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, string(services.CodeJobNotFound), "job not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
			return
		}
		job, err := s.daemon.jobs.Get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
	case "override":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
			return
		}
		var req api.OverrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "", "invalid request body")
			return
		}
		job, err := s.daemon.jobs.SaveOverride(r.Context(), id, timeline.Range{
			StartSec: req.StartSec,
			EndSec:   req.EndSec,
		})
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
	case "render":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
			return
		}
		job, err := s.daemon.jobs.RequestRender(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: api.FromJob(job)})
	case "events":
		s.handleJobEvents(w, r, id)
	case "logs":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
			return
		}
		job, err := s.daemon.jobs.Get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		limit := 100
		if raw := r.URL.Query().Get("tail"); raw != "" {
			if parsed, parseErr := strconv.Atoi(raw); parseErr == nil && parsed > 0 {
				limit = parsed
			}
		}
		lines, err := logs.Tail(job.LogPath, limit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "", err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.LogTailResponse{Path: job.LogPath, Lines: lines})
	case "artifacts":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
			return
		}
		artifacts, err := s.daemon.jobs.Artifacts(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		views := make([]api.ArtifactView, 0, len(artifacts))
		for _, artifact := range artifacts {
			views = append(views, api.FromArtifact(artifact))
		}
		s.writeJSON(w, http.StatusOK, api.ArtifactListResponse{Artifacts: views})
	default:
		s.writeError(w, http.StatusNotFound, "", "unknown resource")
	}
}

// handleJobEvents serves the durable history as JSON, or a replay-then-live
// SSE stream when follow=1.
func (s *apiServer) handleJobEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	query := r.URL.Query()
	afterID, _ := strconv.ParseInt(query.Get("after"), 10, 64)
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")

	if !follow {
		history, err := s.daemon.jobs.Events(r.Context(), id, afterID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.EventListResponse{Events: api.FromEvents(history)})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "", "streaming unsupported")
		return
	}
	sub, err := s.daemon.jobs.Subscribe(r.Context(), id, afterID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub.Events:
			if !open {
				return
			}
			payload, marshalErr := json.Marshal(api.FromEvent(event))
			if marshalErr != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, event.Type, payload)
			flusher.Flush()
		}
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, api.ErrorPayload{Code: code, Message: message})
}

// writeServiceError maps taxonomy codes onto HTTP statuses.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	code := services.CodeOf(err, "")
	status := http.StatusInternalServerError
	switch code {
	case services.CodeJobNotFound:
		status = http.StatusNotFound
	case services.CodeInvalidOverrideRange, services.CodeNoSyncSafeCut, services.CodeAudioLongerThanVideo:
		status = http.StatusUnprocessableEntity
	case services.CodeDependencyMissing, services.CodeModelMissing:
		status = http.StatusServiceUnavailable
	}
	s.writeError(w, status, string(code), services.MessageOf(err))
}
