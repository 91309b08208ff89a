package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/social-studio/internal/imagegen"
	"github.com/sells-group/social-studio/internal/workflow"
)

type contentRoute struct {
	path string
	kind workflow.Kind
	// missing is the 400 message for a blank input_text.
	missing string
	// required fields must be non-empty or the route answers 500 with failed.
	required []string
	failed   string
	rename   map[string]string
}

var contentRoutes = []contentRoute{
	{
		path:     "/twitter",
		kind:     workflow.KindTweet,
		missing:  "Input text is required",
		required: []string{"tweet_text", "image_description"},
		failed:   "Failed to generate tweet",
	},
	{
		path:    "/twitter-thread",
		kind:    workflow.KindThread,
		missing: "Missing 'input_text' in request",
	},
	{
		path:     "/linkedin",
		kind:     workflow.KindLinkedIn,
		missing:  "Input text is required",
		required: []string{"linkedin_text"},
		failed:   "Failed to generate LinkedIn content",
	},
	{
		path:    "/instagram",
		kind:    workflow.KindInstagram,
		missing: "Input text is required",
	},
	{
		path:    "/youtube",
		kind:    workflow.KindYouTube,
		missing: "Missing 'input_text' in request",
		rename: map[string]string{
			"youtube_title":               "title",
			"youtube_description":         "description",
			"thumbnail_image_description": "thumbnail",
		},
	},
	{
		path:    "/voiceover",
		kind:    workflow.KindVoiceover,
		missing: "Missing 'input_text' in request",
	},
}

type contentRequest struct {
	InputText string `json:"input_text"`
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleContent(cr contentRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.InputText) == "" {
			writeError(w, http.StatusBadRequest, cr.missing)
			return
		}

		rec, err := s.workflows.Run(r.Context(), cr.kind, req.InputText)
		if err != nil {
			if errors.Is(err, workflow.ErrEmptyInput) {
				writeError(w, http.StatusBadRequest, cr.missing)
				return
			}
			zap.L().Error("workflow failed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("workflow", string(cr.kind)),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "An error occurred: "+err.Error())
			return
		}

		for _, name := range cr.required {
			if rec.Get(name) == "" {
				writeError(w, http.StatusInternalServerError, cr.failed)
				return
			}
		}

		writeJSON(w, http.StatusOK, renderRecord(rec, cr.rename))
	}
}

func (s *Server) handleImage(aspectRatio string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req imageRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeError(w, http.StatusBadRequest, "Missing 'prompt' in request")
			return
		}

		url, err := s.images.RequestImage(r.Context(), req.Prompt, aspectRatio)
		switch {
		case err == nil && url != "":
			writeJSON(w, http.StatusOK, map[string]string{"image_url": url})
		case err == nil, errors.Is(err, imagegen.ErrJobFailed), errors.Is(err, imagegen.ErrTimeout):
			writeError(w, http.StatusInternalServerError, "Image generation failed")
		case errors.Is(err, imagegen.ErrEmptyPrompt):
			writeError(w, http.StatusBadRequest, "Missing 'prompt' in request")
		default:
			zap.L().Error("image generation failed",
				zap.String("request_id", RequestID(r.Context())),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "An error occurred: "+err.Error())
		}
	}
}

// decodeBody reads a JSON object body. It answers 400 and returns false
// when the body is not valid JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
