package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/history"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

type runRequest struct {
	Path    string `json:"path"`
	Query   string `json:"query"`
	Sheet   string `json:"sheet"`
	Session string `json:"session"`
}

type runResponse struct {
	Type        string          `json:"type"`
	Value       json.RawMessage `json:"value"`
	ArtifactURL string          `json:"artifact_url,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
}

func handleRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes)

		var (
			req  runRequest
			df   *table.Frame
			code int
			err  error
		)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "multipart/form-data":
			req, df, code, err = readUpload(r, deps.MaxUploadBytes)
		case "application/json":
			req, df, code, err = readLocal(r, deps.AllowLocalPaths)
		default:
			code, err = http.StatusUnsupportedMediaType, errors.New("use multipart/form-data with a file field, or application/json with a path")
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "request body exceeds %d bytes", tooLarge.Limit)
				return
			}
			httpError(w, code, "invalid_request_error", "%v", err)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		res := deps.Runner.Run(r.Context(), req.Query, df)

		raw, err := res.JSON()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to encode result: %v", err)
			return
		}
		var envelope struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to encode result: %v", err)
			return
		}
		out := runResponse{Type: string(res.Type), Value: envelope.Value}
		if p := res.Path(); p != "" {
			out.ArtifactURL = "/v1/artifacts/" + url.PathEscape(filepath.Base(p))
		}
		if deps.History != nil {
			sess := history.NewSession(deps.History)
			if req.Session != "" {
				sess = history.ResumeSession(deps.History, req.Session)
			}
			if _, err := sess.Record(r.Context(), req.Query, res); err != nil {
				deps.Logger.Warn("failed to record history", zap.Error(err))
			}
			out.SessionID = sess.ID
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func readUpload(r *http.Request, limit int64) (runRequest, *table.Frame, int, error) {
	if err := r.ParseMultipartForm(limit); err != nil {
		return runRequest{}, nil, http.StatusBadRequest, err
	}
	req := runRequest{
		Query:   r.FormValue("query"),
		Sheet:   r.FormValue("sheet"),
		Session: r.FormValue("session"),
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return req, nil, http.StatusBadRequest, errors.New("file is required")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return req, nil, http.StatusBadRequest, err
	}
	df, err := table.Decode(header.Filename, data, sheetOptions(req.Sheet))
	if err != nil {
		return req, nil, http.StatusBadRequest, err
	}
	return req, df, http.StatusOK, nil
}

func readLocal(r *http.Request, allowed bool) (runRequest, *table.Frame, int, error) {
	if !allowed {
		return runRequest{}, nil, http.StatusForbidden, errors.New("local paths are disabled; upload the file as multipart/form-data")
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, nil, http.StatusBadRequest, err
	}
	if req.Path == "" {
		return req, nil, http.StatusBadRequest, errors.New("path is required")
	}
	df, err := table.Load(req.Path, sheetOptions(req.Sheet))
	if err != nil {
		return req, nil, http.StatusBadRequest, err
	}
	return req, df, http.StatusOK, nil
}

// sheetOptions treats a numeric sheet value as a 1-based index.
func sheetOptions(sheet string) table.LoadOptions {
	sheet = strings.TrimSpace(sheet)
	if n, err := strconv.Atoi(sheet); err == nil && n > 0 {
		return table.LoadOptions{SheetIndex: n}
	}
	return table.LoadOptions{SheetName: sheet}
}
