package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/text/language"

	"go-passport-reader/diagnostics"
	"go-passport-reader/images"
	"go-passport-reader/logging"
	"go-passport-reader/models"
	"go-passport-reader/nfc"
)

const ErrorInternal = "error:internal"
const ERR_MARSHAL = "failed to marshal response message"
const ERR_DECODE_READ_REQUEST = "failed to decode read request"
const ERR_INVALID_KEYS = "invalid access keys"
const ERR_READ_IN_PROGRESS = "a read is already in progress"
const ERR_REPORT_NOT_FOUND = "report not found"
const ERR_REPORT_RETRIEVAL = "failed to get report from storage"
const ERR_NO_FACE_IMAGE = "report has no face image"
const ERR_FACE_PREVIEW = "failed to render face preview"

// a read may take the full transceiver timeout before the response is written
const writeTimeout = nfc.DefaultTimeout + 15*time.Second

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
}

type ServerState struct {
	readService *ReadService
	storage     ReportStorage
	language    language.Tag
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := newRouter(state)

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler:      router,
		Addr:         addr,
		WriteTimeout: writeTimeout,
		ReadTimeout:  15 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

func newRouter(state *ServerState) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Health check request received")
		err := json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		if err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	})

	router.HandleFunc("/api/read", func(w http.ResponseWriter, r *http.Request) {
		handleRead(state, w, r)
	})
	router.HandleFunc("/api/diagnostics/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetReport(state, w, r)
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/diagnostics/{id}/text", func(w http.ResponseWriter, r *http.Request) {
		handleGetReportText(state, w, r)
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/diagnostics/{id}/face.png", func(w http.ResponseWriter, r *http.Request) {
		handleGetFacePreview(state, w, r)
	}).Methods(http.MethodGet)

	slog.Debug("Registered all API routes")
	return router
}

func handleRead(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	var request models.ReadRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_DECODE_READ_REQUEST, err)
		return
	}
	keys := nfc.AccessKeys{
		DocumentNumber: request.DocumentNumber,
		DateOfBirth:    request.DateOfBirth,
		DateOfExpiry:   request.DateOfExpiry,
	}
	if err := keys.Validate(); err != nil {
		respondWithErr(w, http.StatusBadRequest, "invalid request", ERR_INVALID_KEYS, err)
		return
	}

	response, report, err := state.readService.Read(r.Context(), keys, request.Submit)
	if errors.Is(err, ErrReadInProgress) {
		respondWithErr(w, http.StatusConflict, ERR_READ_IN_PROGRESS, ERR_READ_IN_PROGRESS, err)
		return
	}
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, "read failed", err)
		return
	}

	if request.IncludeFace && len(report.FaceImage()) > 0 {
		preview, err := images.RenderPreviewBase64(report.FaceImage())
		if err != nil {
			slog.Warn(ERR_FACE_PREVIEW, "report_id", report.ID, "error", err)
		}
		response.FacePreviewB64 = preview
	}

	slog.Info("Read finished", "report_id", response.ReportID, "status", response.Status)
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func handleGetReport(state *ServerState, w http.ResponseWriter, r *http.Request) {
	report, ok := lookupReport(state, w, r)
	if !ok {
		return
	}
	if err := writeJSON(w, http.StatusOK, report); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
	}
}

func handleGetReportText(state *ServerState, w http.ResponseWriter, r *http.Request) {
	report, ok := lookupReport(state, w, r)
	if !ok {
		return
	}

	lang := state.language
	if q := r.URL.Query().Get("lang"); q != "" {
		lang = nfc.ParseLanguage(q)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(diagnostics.RenderText(report, lang))); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

func handleGetFacePreview(state *ServerState, w http.ResponseWriter, r *http.Request) {
	report, ok := lookupReport(state, w, r)
	if !ok {
		return
	}

	preview, err := images.RenderPreview(report.FaceImage())
	if errors.Is(err, images.ErrNoFaceImage) {
		respondWithErr(w, http.StatusNotFound, ERR_NO_FACE_IMAGE, ERR_NO_FACE_IMAGE, err)
		return
	}
	if err != nil {
		respondWithErr(w, http.StatusUnprocessableEntity, ERR_FACE_PREVIEW, ERR_FACE_PREVIEW, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(preview); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

func lookupReport(state *ServerState, w http.ResponseWriter, r *http.Request) (*diagnostics.Report, bool) {
	id := mux.Vars(r)["id"]
	report, err := state.storage.RetrieveReport(id)
	if errors.Is(err, ErrReportNotFound) {
		respondWithErr(w, http.StatusNotFound, ERR_REPORT_NOT_FOUND, ERR_REPORT_NOT_FOUND, err)
		return nil, false
	}
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_REPORT_RETRIEVAL, err)
		return nil, false
	}
	return report, true
}

// helpers ------------

func respondWithErr(w http.ResponseWriter, code int, responseBody string, logMsg string, e error) {
	if e != nil {
		e = errors.New(logging.Sanitize(e.Error()))
	}
	slog.Error(logMsg, "error", e, "status_code", code, "response_body", responseBody)
	w.WriteHeader(code)
	if _, err := w.Write([]byte(responseBody)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	} else {
		slog.Debug("JSON response written successfully", "status_code", status, "payload_size", len(payload))
	}
	return nil
}
