package httpadapter

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"coitrack/internal/domain"
	"coitrack/internal/logger"
	"coitrack/internal/services/certificates"
	"coitrack/internal/services/requirements"
)

// Server exposes the certificate workflow and the obligation preview over
// HTTP. It is a thin adapter: every business rule lives in the services.
type Server struct {
	certs    *certificates.Service
	resolver *requirements.Service
	log      *logger.Logger
}

func New(certs *certificates.Service, resolver *requirements.Service, baseLog *logger.Logger) *Server {
	return &Server{certs: certs, resolver: resolver, log: baseLog.With("adapter", "http")}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.getHealthz)

	r.Group(func(r chi.Router) {
		r.Use(RequireRole)
		r.Get("/requirements/resolve", s.getResolve)
		r.Route("/certificates", func(r chi.Router) {
			r.Post("/", s.postCertificate)
			r.Get("/pending", s.getPending)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getCertificate)
				r.Post("/upload", s.postUpload)
				r.Post("/review", s.postReview)
				r.Post("/re-review", s.postReReview)
				r.Post("/trades", s.postTrades)
				r.Post("/archive", s.postArchive)
				r.Post("/document", s.postDocument)
				r.Route("/hold-harmless", func(r chi.Router) {
					r.Post("/retry", s.postHHRetry)
					r.Post("/sign", s.postHHSign)
					r.Post("/countersign", s.postHHCountersign)
				})
			})
		})
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createCertificateRequest struct {
	ProjectID          uuid.UUID `json:"project_id"`
	SubcontractorID    uuid.UUID `json:"subcontractor_id"`
	ProjectName        string    `json:"project_name"`
	SubcontractorName  string    `json:"subcontractor_name"`
	GeneralContractor  string    `json:"general_contractor"`
	StateCode          string    `json:"state_code"`
	ProgramID          string    `json:"program_id"`
	Trades             []string  `json:"trades"`
	AdditionalInsureds []string  `json:"additional_insureds"`
}

func (s *Server) postCertificate(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var req createCertificateRequest
	if !decode(w, r, &req) {
		return
	}
	cert, err := s.certs.Create(r.Context(), certificates.CreateParams{
		ProjectID:          req.ProjectID,
		SubcontractorID:    req.SubcontractorID,
		ProjectName:        req.ProjectName,
		SubcontractorName:  req.SubcontractorName,
		GeneralContractor:  req.GeneralContractor,
		StateCode:          req.StateCode,
		ProgramID:          req.ProgramID,
		Trades:             req.Trades,
		AdditionalInsureds: req.AdditionalInsureds,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, certResponse(cert))
}

func (s *Server) getCertificate(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	cert, err := s.certs.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certResponse(cert))
}

func (s *Server) getPending(w http.ResponseWriter, r *http.Request) {
	certs, err := s.certs.ListPending(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(certs))
	for _, c := range certs {
		out = append(out, certResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type uploadRequest struct {
	FileName   string                     `json:"file_name"`
	FileBase64 string                     `json:"file_base64"`
	Coverage   domain.CertificateCoverage `json:"coverage"`
}

func (s *Server) postUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	var req uploadRequest
	if !decode(w, r, &req) {
		return
	}
	var file []byte
	if req.FileBase64 != "" {
		var err error
		if file, err = base64.StdEncoding.DecodeString(req.FileBase64); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "file_base64 is not valid base64"})
			return
		}
	}
	cert, err := s.certs.SubmitUpload(r.Context(), id, roleFrom(r.Context()), req.Coverage, req.FileName, file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certResponse(cert))
}

func (s *Server) postReview(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	res, err := s.certs.Review(r.Context(), id, roleFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	body := certResponse(res.Certificate)
	body["verdict"] = res.Verdict
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) postReReview(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	cert, err := s.certs.RequestReReview(r.Context(), id, roleFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certResponse(cert))
}

type tradesRequest struct {
	Trades []string `json:"trades"`
}

func (s *Server) postTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	var req tradesRequest
	if !decode(w, r, &req) {
		return
	}
	cert, err := s.certs.ReassignTrades(r.Context(), id, roleFrom(r.Context()), req.Trades)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certResponse(cert))
}

func (s *Server) postArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	cert, err := s.certs.Archive(r.Context(), id, roleFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certResponse(cert))
}

func (s *Server) postDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	cert, err := s.certs.RegenerateDocument(r.Context(), id, roleFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certResponse(cert))
}

func (s *Server) postHHRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	cert, err := s.certs.RetryHoldHarmless(r.Context(), id, roleFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certResponse(cert))
}

type signatureRequest struct {
	SignatureRef string `json:"signature_ref"`
}

func (s *Server) postHHSign(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	var req signatureRequest
	if !decode(w, r, &req) {
		return
	}
	cert, err := s.certs.SignHoldHarmless(r.Context(), id, roleFrom(r.Context()), req.SignatureRef)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certResponse(cert))
}

func (s *Server) postHHCountersign(w http.ResponseWriter, r *http.Request) {
	id, ok := certID(w, r)
	if !ok {
		return
	}
	var req signatureRequest
	if !decode(w, r, &req) {
		return
	}
	cert, err := s.certs.CountersignHoldHarmless(r.Context(), id, roleFrom(r.Context()), req.SignatureRef)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, certResponse(cert))
}

func (s *Server) getResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trades := strings.Split(q.Get("trades"), ",")
	for i := range trades {
		trades[i] = strings.TrimSpace(trades[i])
	}
	set, err := s.resolver.Resolve(q.Get("state"), q.Get("program"), trades)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"program_id":   set.ProgramID,
		"state_code":   set.StateCode,
		"trades":       set.Trades,
		"winning_tier": set.WinningTier,
		"obligations":  set.Obligations,
	})
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if roleFrom(r.Context()) != domain.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "admin role required"})
		return false
	}
	return true
}

func certID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid certificate id"})
		return uuid.Nil, false
	}
	return id, true
}

func certResponse(c *domain.Certificate) map[string]any {
	return map[string]any{
		"id":                     c.ID,
		"project_id":             c.ProjectID,
		"subcontractor_id":       c.SubcontractorID,
		"project_name":           c.ProjectName,
		"subcontractor_name":     c.SubcontractorName,
		"general_contractor":     c.GeneralContractor,
		"state_code":             c.StateCode,
		"program_id":             c.ProgramID,
		"trades":                 c.Trades,
		"additional_insureds":    c.AdditionalInsureds,
		"coverage":               c.Coverage,
		"obligations":            c.Obligations,
		"status":                 c.Status,
		"hold_harmless_status":   c.HoldHarmlessStatus,
		"coi_file_url":           c.COIFileURL,
		"generated_coi_url":      c.GeneratedCOIURL,
		"hold_harmless_file_url": c.HoldHarmlessFileURL,
		"version":                c.Version,
		"archived":               c.Archived,
		"created_at":             c.CreatedAt,
		"updated_at":             c.UpdatedAt,
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		unknownTrade *domain.UnknownTradeError
		invalid      *domain.InvalidTransitionError
		wrongState   *domain.WrongStateError
		unauthorized *domain.UnauthorizedActorError
	)
	switch {
	case errors.As(err, &unknownTrade):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "unknown_trade"})
	case errors.Is(err, domain.ErrNoTrades):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "no_trades"})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_transition"})
	case errors.As(err, &wrongState):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "wrong_state"})
	case errors.Is(err, domain.ErrCertificateFinal), errors.Is(err, domain.ErrArchived), errors.Is(err, domain.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "conflict"})
	case errors.As(err, &unauthorized):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error(), Code: "unauthorized_actor"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "certificate not found", Code: "not_found"})
	default:
		s.log.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
