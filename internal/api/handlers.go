package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dmitrymomot/mailmerge/pkg/draft"
	"github.com/dmitrymomot/mailmerge/pkg/ingest"
	"github.com/dmitrymomot/mailmerge/pkg/personalize"
	"github.com/dmitrymomot/mailmerge/pkg/recipient"
)

type validateResponse struct {
	Valid        []ingest.ValidRow   `json:"valid_rows"`
	Invalid      []ingest.InvalidRow `json:"invalid_rows"`
	ValidCount   int                 `json:"valid_rows_count"`
	InvalidCount int                 `json:"invalid_rows_count"`
}

func (s *Server) validateCSV(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "a CSV file is required in the \"file\" field")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "Only CSV files are allowed.")
		return
	}

	res, err := ingest.IngestCSV(file)
	if err != nil {
		s.logger.WarnContext(r.Context(), "csv rejected",
			slog.String("file", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Error reading CSV: %v", err))
		return
	}

	resp := validateResponse{
		Valid:        res.Valid,
		Invalid:      res.Invalid,
		ValidCount:   len(res.Valid),
		InvalidCount: len(res.Invalid),
	}
	if resp.Valid == nil {
		resp.Valid = []ingest.ValidRow{}
	}
	if resp.Invalid == nil {
		resp.Invalid = []ingest.InvalidRow{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type generateRequest struct {
	UserMessage string       `json:"user_message"`
	History     []draft.Turn `json:"history"`
}

func (s *Server) generateEmail(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "draft generation is not configured")
		return
	}

	var req generateRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := s.generator.Generate(r.Context(), req.UserMessage, req.History)
	switch {
	case errors.Is(err, draft.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "draft generation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("AI generation failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, d)
}

type personalizeRequest struct {
	Subject    string           `json:"subject"`
	Body       string           `json:"body"`
	Mode       string           `json:"mode"`
	Recipients []map[string]any `json:"recipients"`
}

type skippedRecipient struct {
	Email string `json:"email"`
	Error string `json:"error"`
	Index int    `json:"index"`
}

type personalizeResponse struct {
	Subject string                `json:"subject"`
	Emails  []personalize.Payload `json:"emails"`
	Skipped []skippedRecipient    `json:"skipped,omitempty"`
}

func (s *Server) personalizeEmails(w http.ResponseWriter, r *http.Request) {
	var req personalizeRequest
	if !decode(w, r, &req) {
		return
	}

	tpl, err := s.engine.Parse(req.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Personalization failed: %v", err))
		return
	}

	recipients := make([]personalize.Recipient, len(req.Recipients))
	for i, fields := range req.Recipients {
		email, _ := fields[recipient.FieldEmail].(string)
		recipients[i] = personalize.Recipient{Email: email, Fields: fields}
	}

	res, err := personalize.Personalize(tpl, recipients, personalize.Mode(req.Mode), s.popts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Personalization failed: %v", err))
		return
	}

	resp := personalizeResponse{Subject: req.Subject, Emails: res.Payloads}
	for _, sk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedRecipient{Index: sk.Index, Email: sk.Email, Error: sk.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

type sendRequest struct {
	Subject string                `json:"subject"`
	Emails  []personalize.Payload `json:"emails"`
}

func (s *Server) sendEmails(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "sending is not configured")
		return
	}

	var req sendRequest
	if !decode(w, r, &req) {
		return
	}

	out := s.tracker.Dispatch(r.Context(), req.Emails, req.Subject)
	if len(out.Failed) > 0 {
		s.logger.WarnContext(r.Context(), "some emails were not sent",
			slog.Int("sent", len(out.Sent)),
			slog.Int("failed", len(out.Failed)),
			slog.String("error", out.Err().Error()),
		)
	}
	writeJSON(w, http.StatusOK, out)
}

// decode reads a JSON body into v, writing an error response on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body is too large")
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
