package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/chess-cup/models"
	"github.com/Dosada05/chess-cup/services"
)

const maxImportBytes = 5 << 20

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

type createTournamentInput struct {
	Name         string `json:"name"`
	TotalPlayers int    `json:"total_players"`
}

type resetInput struct {
	TotalPlayers int `json:"total_players"`
}

type resultInput struct {
	Result1 *float64 `json:"result1"`
	Result2 *float64 `json:"result2"`
}

func (in resultInput) validate() map[string]string {
	problems := map[string]string{}
	if in.Result1 == nil {
		problems["result1"] = "must be provided"
	}
	if in.Result2 == nil {
		problems["result2"] = "must be provided"
	}
	return problems
}

type tiebreakInput struct {
	TiebreakPoints *float64 `json:"tiebreak_points"`
}

type renameInput struct {
	Name string `json:"name"`
}

type autosaveInput struct {
	Enabled *bool `json:"enabled"`
}

func (h *TournamentHandler) respond(w http.ResponseWriter, r *http.Request, status int, state *services.TournamentState, err error) {
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, status, jsonResponse{"tournament": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetHandler serves GET /tournament.
func (h *TournamentHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.tournamentService.State(), nil)
}

// CreateHandler serves POST /tournaments.
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input createTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.TotalPlayers < 0 {
		failedValidationResponse(w, r, map[string]string{"total_players": "must not be negative"})
		return
	}
	state, err := h.tournamentService.Create(r.Context(), input.Name, input.TotalPlayers)
	h.respond(w, r, http.StatusCreated, state, err)
}

// ListHandler serves GET /tournaments.
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intFromQuery(r, "limit", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	offset, err := intFromQuery(r, "offset", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	summaries, err := h.tournamentService.List(r.Context(), limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": summaries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LoadHandler serves POST /tournaments/{tournamentID}/load.
func (h *TournamentHandler) LoadHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tournamentID")
	if id == "" {
		badRequestResponse(w, r, errors.New("missing tournamentID"))
		return
	}
	state, err := h.tournamentService.Load(r.Context(), id)
	h.respond(w, r, http.StatusOK, state, err)
}

// DeleteHandler serves DELETE /tournaments/{tournamentID} and responds with
// the tournament that is current afterwards.
func (h *TournamentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tournamentID")
	if id == "" {
		badRequestResponse(w, r, errors.New("missing tournamentID"))
		return
	}
	state, err := h.tournamentService.Delete(r.Context(), id)
	h.respond(w, r, http.StatusOK, state, err)
}

// ResetHandler serves POST /tournament/reset.
func (h *TournamentHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	var input resetInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.TotalPlayers <= 0 {
		failedValidationResponse(w, r, map[string]string{"total_players": "must be positive"})
		return
	}
	state, err := h.tournamentService.Reset(r.Context(), input.TotalPlayers)
	h.respond(w, r, http.StatusOK, state, err)
}

// RecordResultHandler serves PUT /tournament/groups/{group}/fixtures/{index}.
func (h *TournamentHandler) RecordResultHandler(w http.ResponseWriter, r *http.Request) {
	index, err := intFromURL(r, "index")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input resultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if problems := input.validate(); len(problems) > 0 {
		failedValidationResponse(w, r, problems)
		return
	}
	state, err := h.tournamentService.RecordResult(r.Context(), chi.URLParam(r, "group"), index, *input.Result1, *input.Result2)
	h.respond(w, r, http.StatusOK, state, err)
}

// ClearResultHandler serves DELETE /tournament/groups/{group}/fixtures/{index}.
func (h *TournamentHandler) ClearResultHandler(w http.ResponseWriter, r *http.Request) {
	index, err := intFromURL(r, "index")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	state, err := h.tournamentService.ClearResult(r.Context(), chi.URLParam(r, "group"), index)
	h.respond(w, r, http.StatusOK, state, err)
}

// SetTiebreakHandler serves PUT /tournament/players/{playerID}/tiebreak.
func (h *TournamentHandler) SetTiebreakHandler(w http.ResponseWriter, r *http.Request) {
	var input tiebreakInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.TiebreakPoints == nil {
		failedValidationResponse(w, r, map[string]string{"tiebreak_points": "must be provided"})
		return
	}
	state, err := h.tournamentService.SetTiebreak(r.Context(), chi.URLParam(r, "playerID"), *input.TiebreakPoints)
	h.respond(w, r, http.StatusOK, state, err)
}

// RenamePlayerHandler serves PUT /tournament/players/{playerID}/name.
func (h *TournamentHandler) RenamePlayerHandler(w http.ResponseWriter, r *http.Request) {
	var input renameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	state, err := h.tournamentService.RenamePlayer(r.Context(), chi.URLParam(r, "playerID"), input.Name)
	h.respond(w, r, http.StatusOK, state, err)
}

// RecordKnockoutResultHandler serves PUT /tournament/bracket/{stage}/{matchNumber}.
func (h *TournamentHandler) RecordKnockoutResultHandler(w http.ResponseWriter, r *http.Request) {
	matchNumber, err := intFromURL(r, "matchNumber")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input resultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if problems := input.validate(); len(problems) > 0 {
		failedValidationResponse(w, r, problems)
		return
	}
	stage := models.Stage(chi.URLParam(r, "stage"))
	state, err := h.tournamentService.RecordKnockoutResult(r.Context(), stage, matchNumber, *input.Result1, *input.Result2)
	h.respond(w, r, http.StatusOK, state, err)
}

// AdvanceStageHandler serves POST /tournament/bracket/{stage}/advance.
func (h *TournamentHandler) AdvanceStageHandler(w http.ResponseWriter, r *http.Request) {
	stage := models.Stage(chi.URLParam(r, "stage"))
	advanced, state, err := h.tournamentService.AdvanceStage(r.Context(), stage)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"advanced": advanced, "tournament": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SaveHandler serves POST /tournament/save.
func (h *TournamentHandler) SaveHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.tournamentService.Save(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"save": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AutosaveHandler serves PUT /tournament/autosave.
func (h *TournamentHandler) AutosaveHandler(w http.ResponseWriter, r *http.Request) {
	var input autosaveInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Enabled == nil {
		failedValidationResponse(w, r, map[string]string{"enabled": "must be provided"})
		return
	}
	h.respond(w, r, http.StatusOK, h.tournamentService.SetAutosave(r.Context(), *input.Enabled), nil)
}

// ExportHandler serves GET /tournament/export as a file download.
func (h *TournamentHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.tournamentService.Export(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ImportHandler serves POST /tournament/import. The body is an exported
// tournament file.
func (h *TournamentHandler) ImportHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		badRequestResponse(w, r, fmt.Errorf("reading tournament file: %w", err))
		return
	}
	state, err := h.tournamentService.Import(r.Context(), data)
	h.respond(w, r, http.StatusOK, state, err)
}
