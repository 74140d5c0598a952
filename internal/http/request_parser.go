// This file parses and validates request bodies, path variables and query
// parameters.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"budgetbook/internal/core"
)

const maxBodyBytes = 1 << 20

// timestampLayouts are tried in order; the last one is a bare date.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseTimestamp accepts RFC 3339, a zone-less date-time (read as UTC) or a
// bare date (midnight UTC).
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, core.ErrMissingDate
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: transactionDate %q", core.ErrInvalidArgument, s)
}

// decodeJSON reads one JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty request body", core.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: malformed request body: %v", core.ErrInvalidArgument, err)
	}
	return nil
}

// pathID reads a positive integer path variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", core.ErrInvalidArgument, name, raw)
	}
	return id, nil
}

// queryInt returns def when key is absent and an error when it is present
// but not an integer.
func queryInt(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", core.ErrInvalidArgument, key, v)
	}
	return n, nil
}

// requiredQueryInt is queryInt for parameters without a default.
func requiredQueryInt(q url.Values, key string) (int, error) {
	if strings.TrimSpace(q.Get(key)) == "" {
		return 0, fmt.Errorf("%w: %s is required", core.ErrInvalidArgument, key)
	}
	return queryInt(q, key, 0)
}

func queryInt64(q url.Values, key string) (int64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s %q", core.ErrInvalidArgument, key, v)
	}
	return n, nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

type transactionRequest struct {
	AccountID       int64                `json:"accountId"`
	CategoryID      int64                `json:"categoryId"`
	Type            core.TransactionType `json:"type"`
	Amount          core.Money           `json:"amount"`
	Memo            string               `json:"memo"`
	TransactionDate string               `json:"transactionDate"`
}

func (req transactionRequest) fields() (core.TransactionFields, error) {
	date, err := parseTimestamp(req.TransactionDate)
	if err != nil {
		return core.TransactionFields{}, err
	}
	return core.TransactionFields{
		CategoryID:      req.CategoryID,
		Type:            req.Type,
		Amount:          req.Amount,
		Memo:            sanitizeInput(req.Memo),
		TransactionDate: date,
	}, nil
}

type accountRequest struct {
	BankName       string     `json:"bankName"`
	Alias          string     `json:"alias"`
	InitialBalance core.Money `json:"initialBalance"`
}

type accountAliasRequest struct {
	Alias string `json:"alias"`
}

type categoryRequest struct {
	Name string               `json:"name"`
	Type core.TransactionType `json:"type"`
	Icon string               `json:"icon"`
}

type categoryPatchRequest struct {
	Name *string `json:"name"`
	Icon *string `json:"icon"`
}
