package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MathFreedom/SafeMask/internal/anonymize"
	"github.com/MathFreedom/SafeMask/internal/detect"
	"github.com/MathFreedom/SafeMask/internal/diffview"
	"github.com/MathFreedom/SafeMask/internal/vault"
)

const maxBodyBytes = 4 << 20 // 4 MiB

type anonymizeRequest struct {
	Text  string            `json:"text"`
	Modes map[string]string `json:"modes,omitempty"`
	Smart bool              `json:"smart,omitempty"`
}

type deanonymizeRequest struct {
	Text string `json:"text"`
}

type deanonymizeResponse struct {
	Text string `json:"text"`
}

type diffRequest struct {
	Original    string `json:"original"`
	Transformed string `json:"transformed"`
}

type diffResponse struct {
	HTML string `json:"html"`
}

type vaultStatusResponse struct {
	Unlocked   bool `json:"unlocked"`
	TokenCount int  `json:"tokenCount"`
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

// decodeBody reads a size-capped JSON body into v, writing the error
// response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body: "+err.Error())
		return false
	}
	return true
}

// requestPolicy resolves the effective policy for a request: the per-request
// mode table when given, the server default otherwise.
func (s *Server) requestPolicy(modes map[string]string) (*anonymize.Policy, error) {
	if len(modes) == 0 {
		return s.policy, nil
	}
	sparse := make(map[detect.Category]anonymize.Mode, len(modes))
	for c, m := range modes {
		sparse[detect.Category(c)] = anonymize.Mode(m)
	}
	return anonymize.NewPolicy(sparse)
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pol, err := s.requestPolicy(req.Modes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var res *anonymize.Result
	if req.Smart {
		res, err = s.engine.AnonymizeSmart(r.Context(), req.Text, pol)
	} else {
		res, err = s.engine.Anonymize(r.Context(), req.Text, pol)
	}
	if err != nil {
		s.writeVaultError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeanonymize(w http.ResponseWriter, r *http.Request) {
	var req deanonymizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text, err := s.engine.Deanonymize(r.Context(), req.Text)
	if err != nil {
		s.writeVaultError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deanonymizeResponse{Text: text})
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, diffResponse{HTML: diffview.HTML(req.Original, req.Transformed)})
}

func (s *Server) handleVaultStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, vaultStatusResponse{
		Unlocked:   s.vault.IsUnlocked(),
		TokenCount: s.vault.Len(),
	})
}

func (s *Server) handleVaultExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.vault.ExportSnapshot(r.Context())
	if err != nil {
		s.writeVaultError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleVaultImport(w http.ResponseWriter, r *http.Request) {
	var snap vault.Snapshot
	if !decodeBody(w, r, &snap) {
		return
	}
	if err := s.vault.ImportSnapshot(r.Context(), &snap); err != nil {
		s.writeVaultError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vaultStatusResponse{
		Unlocked:   s.vault.IsUnlocked(),
		TokenCount: s.vault.Len(),
	})
}

func (s *Server) handleVaultClear(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.Clear(r.Context()); err != nil {
		s.writeVaultError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleVaultLock(w http.ResponseWriter, r *http.Request) {
	s.vault.Lock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

func (s *Server) handleVaultUnlock(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.Unlock(r.Context()); err != nil {
		s.writeVaultError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func (s *Server) handleVaultAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		limit = n
	}
	records, err := s.vault.AuditLog(r.Context(), limit)
	if err != nil {
		s.writeVaultError(w, r, err)
		return
	}
	if records == nil {
		records = []vault.AccessRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// writeVaultError maps vault sentinel errors to HTTP statuses.
func (s *Server) writeVaultError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vault.ErrLocked):
		writeError(w, http.StatusLocked, "vault_locked", "vault is locked; unlock before use")
	case errors.Is(err, vault.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, "vault_not_initialized", "vault is not initialized")
	case errors.Is(err, vault.ErrDecryptFailed):
		writeError(w, http.StatusUnprocessableEntity, "decrypt_failed", "encrypted payload cannot be decrypted with the local key")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
