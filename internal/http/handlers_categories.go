package http

import (
	"net/http"
	"strings"

	"budgetbook/internal/core"
	"budgetbook/internal/services"
)

// handleListCategories accepts an optional ?type=INCOME|EXPENSE filter.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var t core.TransactionType
	if v := strings.TrimSpace(r.URL.Query().Get("type")); v != "" {
		parsed, err := core.ParseTransactionType(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		t = parsed
	}
	cats, err := s.directory.ListCategories(r.Context(), userFromContext(r.Context()), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Data(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := s.directory.CreateCategory(r.Context(), userFromContext(r.Context()), core.NewCategory{
		Name: sanitizeInput(req.Name),
		Type: req.Type,
		Icon: sanitizeInput(req.Icon),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(cat).Message("category created").Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req categoryPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch := services.CategoryPatch{Name: req.Name, Icon: req.Icon}
	if patch.Name != nil {
		name := sanitizeInput(*patch.Name)
		patch.Name = &name
	}
	if patch.Icon != nil {
		icon := sanitizeInput(*patch.Icon)
		patch.Icon = &icon
	}
	cat, err := s.directory.UpdateCategory(r.Context(), userFromContext(r.Context()), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(cat).Message("category updated").Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.directory.DeleteCategory(r.Context(), userFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("category deleted").Write(w)
}
