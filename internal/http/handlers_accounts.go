package http

import (
	"net/http"
	"strings"

	"budgetbook/internal/core"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	bankName := sanitizeInput(r.URL.Query().Get("bankName"))
	accounts, err := s.directory.ListAccounts(r.Context(), userFromContext(r.Context()), bankName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	NewJSONResponse().Data(accounts).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	acc, err := s.directory.CreateAccount(r.Context(), userFromContext(r.Context()), core.NewAccount{
		BankName:       sanitizeInput(req.BankName),
		Alias:          sanitizeInput(req.Alias),
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(acc).Message("account created").Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	acc, err := s.directory.GetAccount(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(acc).Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req accountAliasRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	acc, err := s.directory.UpdateAccountAlias(r.Context(), userFromContext(r.Context()), id, strings.TrimSpace(sanitizeInput(req.Alias)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(acc).Message("account updated").Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.directory.DeleteAccount(r.Context(), userFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("account deleted").Write(w)
}
