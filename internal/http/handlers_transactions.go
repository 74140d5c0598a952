package http

import (
	"net/http"
	"strings"

	"budgetbook/internal/core"
)

// handleListTransactions serves two shapes: with ?date=YYYY-MM-DD the
// transactions of that calendar day, otherwise one page (?page, ?size).
// Both accept ?accountId.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userFromContext(ctx)
	q := r.URL.Query()

	accountID, err := queryInt64(q, "accountId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if v := strings.TrimSpace(q.Get("date")); v != "" {
		day, err := core.ParseDate(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		items, err := s.ledger.ListTransactionsByDate(ctx, userID, day, accountID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if items == nil {
			items = []core.Transaction{}
		}
		NewJSONResponse().Data(items).Write(w)
		return
	}

	page, err := queryInt(q, "page", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := queryInt(q, "size", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.ledger.ListTransactions(ctx, userID, accountID, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.Items == nil {
		result.Items = []core.Transaction{}
	}
	NewJSONResponse().Data(result).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.CreateTransaction(r.Context(), userFromContext(r.Context()), core.NewTransaction{
		AccountID:         req.AccountID,
		TransactionFields: fields,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(tx).Message("transaction created").Write(w)
}

// handleUpdateTransaction replaces every editable field; accountId in the
// body is ignored because a transaction never moves between accounts.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.UpdateTransaction(r.Context(), userFromContext(r.Context()), id, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(tx).Message("transaction updated").Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), userFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("transaction deleted").Write(w)
}
