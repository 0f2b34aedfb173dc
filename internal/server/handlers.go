package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/textcluster/internal/config"
	"github.com/thebtf/textcluster/internal/corpus"
	"github.com/thebtf/textcluster/internal/events"
	"github.com/thebtf/textcluster/internal/pipeline"
	"github.com/thebtf/textcluster/pkg/cluster"
	"github.com/thebtf/textcluster/pkg/errs"
	"github.com/thebtf/textcluster/pkg/linkage"
	"github.com/thebtf/textcluster/pkg/projection"
	"github.com/thebtf/textcluster/pkg/segment"
)

// maxJSONBody bounds a JSON request body.
const maxJSONBody = 16 << 20

// clusterRequest is the body of /v1/cluster and /v1/sweep. Omitted sections keep the
// server's configured defaults.
type clusterRequest struct {
	Corpus         []string                  `json:"corpus"`
	Text           string                    `json:"text"`
	Sample         bool                      `json:"sample"`
	Vectorizer     config.VectorizerConfig   `json:"vectorizer"`
	Cluster        cluster.Params            `json:"cluster"`
	Projection     projection.Options        `json:"projection"`
	Dendrogram     linkage.DendrogramOptions `json:"dendrogram"`
	SkipProjection bool                      `json:"skip_projection"`

	// sweep only
	KMin int `json:"kmin"`
	KMax int `json:"kmax"`
}

type frequencyRequest struct {
	Corpus    []string `json:"corpus"`
	Text      string   `json:"text"`
	Segmenter string   `json:"segmenter"`
	StopWords string   `json:"stop_words"`
	Top       int      `json:"top"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Stage string `json:"stage,omitempty"`
}

type sweepResponse struct {
	RequestID uuid.UUID            `json:"request_id"`
	Steps     []pipeline.SweepStep `json:"steps"`
	Best      *pipeline.SweepStep  `json:"best,omitempty"`
}

// badRequest marks a body or option the server could not interpret.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }

func (e badRequest) Unwrap() error { return e.err }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"algorithms":  cluster.Describe(),
		"linkages":    linkage.Methods,
		"projections": []projection.Method{projection.PCA, projection.TSNE},
		"segmenters":  []string{segment.NameWords, segment.NameWhitespace, segment.NameBPE},
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"vectorizer": cfg.Vectorizer,
		"cluster":    cfg.Cluster,
		"projection": cfg.Projection,
		"dendrogram": cfg.Dendrogram,
	})
}

// handleCluster runs one pipeline request from a JSON body.
func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	body := s.newClusterRequest()
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	docs, err := resolveCorpus(body.Corpus, body.Text, body.Sample)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.run(w, r, body, docs)
}

// handleUpload clusters the lines of one or more uploaded UTF-8 files. Options may be
// given as a JSON "options" form field with the same shape as the /v1/cluster body.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	r.Body = http.MaxBytesReader(w, r.Body, cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(cfg.Server.MaxUploadBytes); err != nil {
		s.writeError(w, badRequest{fmt.Errorf("parse upload: %w", err)})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	body := s.newClusterRequest()
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			s.writeError(w, badRequest{fmt.Errorf("parse options: %w", err)})
			return
		}
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeError(w, badRequest{errors.New(`no files in form field "files"`)})
		return
	}
	var docs []string
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, badRequest{fmt.Errorf("open %s: %w", fh.Filename, err)})
			return
		}
		lines, err := corpus.ReadLines(f)
		f.Close()
		if err != nil {
			s.writeError(w, fmt.Errorf("%s: %w", fh.Filename, err))
			return
		}
		docs = append(docs, lines...)
	}
	s.run(w, r, body, docs)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	body := s.newClusterRequest()
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	docs, err := resolveCorpus(body.Corpus, body.Text, body.Sample)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, err := s.buildRequest(body, docs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	steps, err := s.runner.Sweep(r.Context(), req, body.KMin, body.KMax, func(st pipeline.SweepStep) {
		s.publish(events.Event{Type: events.TypeSweepStep, RequestID: req.ID.String(), Data: st})
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := sweepResponse{RequestID: req.ID, Steps: steps}
	if best, ok := pipeline.BestByCohesion(steps); ok {
		resp.Best = &best
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFrequencies returns the most frequent tokens of a corpus.
func (s *Server) handleFrequencies(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	body := frequencyRequest{
		Segmenter: cfg.Vectorizer.Segmenter,
		StopWords: cfg.Vectorizer.StopWords,
		Top:       20,
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	docs, err := resolveCorpus(body.Corpus, body.Text, false)
	if err != nil {
		s.writeError(w, err)
		return
	}

	vc := config.VectorizerConfig{Segmenter: body.Segmenter, StopWords: body.StopWords, MaxDF: 1, MinDF: 1}
	probe := config.Config{Vectorizer: vc}
	opts, err := probe.VectorizerOptions()
	if err != nil {
		s.writeError(w, badRequest{err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": len(docs),
		"terms":     segment.TopTerms(segment.Count(opts.Segmenter, docs), body.Top),
	})
}

func (s *Server) newClusterRequest() clusterRequest {
	cfg := s.Config()
	return clusterRequest{
		Vectorizer: cfg.Vectorizer,
		Cluster:    cfg.Cluster,
		Projection: cfg.Projection,
		Dendrogram: cfg.Dendrogram,
	}
}

func (s *Server) buildRequest(body clusterRequest, docs []string) (pipeline.Request, error) {
	cfg := *s.Config()
	if limit := cfg.Server.MaxCorpus; len(docs) > limit {
		return pipeline.Request{}, errs.Range("", "documents", len(docs), fmt.Sprintf("<= %d", limit))
	}
	cfg.Vectorizer = body.Vectorizer
	cfg.Cluster = body.Cluster
	cfg.Projection = body.Projection
	cfg.Dendrogram = body.Dendrogram

	req, err := cfg.Request(docs)
	if err != nil {
		return pipeline.Request{}, badRequest{err}
	}
	req.SkipProjection = body.SkipProjection
	return req, nil
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, body clusterRequest, docs []string) {
	req, err := s.buildRequest(body, docs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.publish(events.Event{
			Type:      events.TypeRunFailed,
			RequestID: req.ID.String(),
			Data:      errorBody(err),
		})
		s.writeError(w, err)
		return
	}

	s.publish(events.Event{
		Type:      events.TypeRunCompleted,
		RequestID: res.RequestID.String(),
		Data: map[string]any{
			"algorithm": res.Algorithm,
			"documents": res.Documents,
			"clusters":  res.EffectiveClusterCount,
			"noise":     res.NoiseCount,
			"quality":   res.Quality,
		},
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) publish(ev events.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// resolveCorpus merges explicit documents, pasted text or the sample corpus.
func resolveCorpus(docs []string, text string, sample bool) ([]string, error) {
	if sample {
		return corpus.Sample(), nil
	}
	var out []string
	for _, d := range docs {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	if text != "" {
		lines, err := corpus.FromText(text)
		if err != nil {
			return nil, err
		}
		out = append(out, lines...)
	}
	return out, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func errorBody(err error) errorResponse {
	resp := errorResponse{Error: err.Error(), Kind: errs.Kind(err)}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		resp.Stage = se.Stage
	}
	return resp
}

// writeError maps typed pipeline failures and undecodable text to 422 and malformed
// input to 400. Anything else is a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var br badRequest
	resp := errorBody(err)
	status := http.StatusInternalServerError

	switch {
	case errs.IsUserError(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, corpus.ErrInvalidEncoding):
		status = http.StatusUnprocessableEntity
		resp.Kind = "invalid_encoding"
	case errors.As(err, &br):
		status = http.StatusBadRequest
		resp.Kind = "bad_request"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		resp.Kind = "cancelled"
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
