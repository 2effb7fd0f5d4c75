package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"care-ats/internal/dataset"
	"care-ats/internal/logger"
	"care-ats/internal/phone"
	"care-ats/internal/store"
	"care-ats/internal/types"
)

const (
	maxImportSize = 10 << 20
	maxNoteLength = 4000
)

type CandidatesHandler struct {
	store       *store.Store
	countryCode string
	log         *logger.Logger
}

type createCandidateRequest struct {
	Phone             string   `json:"phone"`
	Name              string   `json:"name"`
	Roles             []string `json:"roles"`
	Qualifications    []string `json:"qualifications"`
	DriverStatus      string   `json:"driver_status"`
	DBSStatus         string   `json:"dbs_status"`
	RightToWork       string   `json:"right_to_work"`
	TrainingStatus    string   `json:"training_status"`
	EarliestStartDate string   `json:"earliest_start_date"`
	PreferredHours    string   `json:"preferred_hours"`
	ExperienceSummary string   `json:"experience_summary"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type noteRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

type importResponse struct {
	Imported int                `json:"imported"`
	Skipped  []dataset.RowError `json:"skipped"`
}

func (h *CandidatesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.CandidateFilter{
		Status: q.Get("status"),
		Query:  strings.TrimSpace(q.Get("q")),
		Limit:  50,
	}
	if f.Status != "" && !types.ValidStatus(f.Status) {
		writeError(w, "invalid status", http.StatusBadRequest)
		return
	}
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			f.Limit = v
		}
	}
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			f.Offset = v
		}
	}

	cands, err := h.store.ListCandidates(r.Context(), f)
	if err != nil {
		h.log.WithError(err).Error("list candidates")
		writeError(w, "failed to list candidates", http.StatusInternalServerError)
		return
	}
	if cands == nil {
		cands = []types.Candidate{}
	}
	writeJSON(w, cands, http.StatusOK)
}

// Create adds a candidate entered by hand.
func (h *CandidatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	num := phone.Normalize(req.Phone, h.countryCode)
	if num == "" {
		writeError(w, "invalid phone", http.StatusBadRequest)
		return
	}

	c := &types.Candidate{
		Phone:             num,
		Name:              strings.TrimSpace(req.Name),
		Status:            types.StatusNew,
		Source:            types.SourceManual,
		Roles:             req.Roles,
		Qualifications:    req.Qualifications,
		DriverStatus:      req.DriverStatus,
		DBSStatus:         req.DBSStatus,
		RightToWork:       req.RightToWork,
		TrainingStatus:    req.TrainingStatus,
		EarliestStartDate: req.EarliestStartDate,
		PreferredHours:    req.PreferredHours,
		ExperienceSummary: req.ExperienceSummary,
	}
	if err := h.store.InsertCandidate(r.Context(), c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, "candidate with this phone already exists", http.StatusConflict)
			return
		}
		h.log.WithError(err).Error("create candidate")
		writeError(w, "failed to create candidate", http.StatusInternalServerError)
		return
	}
	writeJSON(w, c, http.StatusCreated)
}

func (h *CandidatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.candidate(w, r)
	if !ok {
		return
	}
	writeJSON(w, c, http.StatusOK)
}

func (h *CandidatesHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !types.ValidStatus(status) {
		writeError(w, fmt.Sprintf("status must be %s, %s or %s", types.StatusNew, types.StatusShortlisted, types.StatusRejected), http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.store.UpdateCandidateStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "candidate not found", http.StatusNotFound)
			return
		}
		h.log.WithError(err).Error("update candidate status")
		writeError(w, "failed to update status", http.StatusInternalServerError)
		return
	}
	h.Get(w, r)
}

func (h *CandidatesHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	c, ok := h.candidate(w, r)
	if !ok {
		return
	}
	notes, err := h.store.ListNotes(r.Context(), c.ID)
	if err != nil {
		h.log.WithError(err).Error("list notes")
		writeError(w, "failed to list notes", http.StatusInternalServerError)
		return
	}
	if notes == nil {
		notes = []types.Note{}
	}
	writeJSON(w, notes, http.StatusOK)
}

func (h *CandidatesHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	c, ok := h.candidate(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeError(w, "body is required", http.StatusBadRequest)
		return
	}
	if len(req.Body) > maxNoteLength {
		writeError(w, "note too long", http.StatusBadRequest)
		return
	}
	if req.Author == "" {
		req.Author = adminFrom(r.Context())
	}

	n := &types.Note{CandidateID: c.ID, Author: req.Author, Body: req.Body}
	if err := h.store.AddNote(r.Context(), n); err != nil {
		h.log.WithError(err).Error("add note")
		writeError(w, "failed to add note", http.StatusInternalServerError)
		return
	}
	writeJSON(w, n, http.StatusCreated)
}

func (h *CandidatesHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	c, ok := h.candidate(w, r)
	if !ok {
		return
	}
	calls, err := h.store.ListCallsForCandidate(r.Context(), c.ID)
	if err != nil {
		h.log.WithError(err).Error("list calls")
		writeError(w, "failed to list calls", http.StatusInternalServerError)
		return
	}
	if calls == nil {
		calls = []types.CallRecord{}
	}
	writeJSON(w, calls, http.StatusOK)
}

// Import reads an uploaded workbook (form field "file") and inserts every
// candidate whose phone is not already known.
func (h *CandidatesHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	cands, skipped, err := dataset.Read(file, h.countryCode)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := importResponse{Skipped: skipped}
	for i := range cands {
		if err := h.store.InsertCandidate(r.Context(), &cands[i]); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				res.Skipped = append(res.Skipped, dataset.RowError{Reason: fmt.Sprintf("%s already exists", cands[i].Phone)})
				continue
			}
			h.log.WithError(err).Error("import candidate")
			writeError(w, "failed to import candidates", http.StatusInternalServerError)
			return
		}
		res.Imported++
	}
	if res.Skipped == nil {
		res.Skipped = []dataset.RowError{}
	}
	h.log.WithField("imported", res.Imported).WithField("skipped", len(res.Skipped)).Info("candidates imported")
	writeJSON(w, res, http.StatusOK)
}

// Export streams every candidate as an xlsx workbook.
func (h *CandidatesHandler) Export(w http.ResponseWriter, r *http.Request) {
	cands, err := h.store.ListCandidates(r.Context(), store.CandidateFilter{Status: r.URL.Query().Get("status")})
	if err != nil {
		h.log.WithError(err).Error("export candidates")
		writeError(w, "failed to list candidates", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := dataset.ExportCandidates(&buf, cands); err != nil {
		h.log.WithError(err).Error("export candidates")
		writeError(w, "failed to build workbook", http.StatusInternalServerError)
		return
	}
	writeXLSX(w, "candidates.xlsx", buf.Bytes())
}

func (h *CandidatesHandler) candidate(w http.ResponseWriter, r *http.Request) (*types.Candidate, bool) {
	c, err := h.store.GetCandidate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "candidate not found", http.StatusNotFound)
			return nil, false
		}
		h.log.WithError(err).Error("get candidate")
		writeError(w, "failed to load candidate", http.StatusInternalServerError)
		return nil, false
	}
	return c, true
}

func writeXLSX(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
