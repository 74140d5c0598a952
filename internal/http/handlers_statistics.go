package http

import (
	"net/http"
)

func (s *Server) handleMonthlyStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := requiredQueryInt(q, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := requiredQueryInt(q, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.stats.Monthly(r.Context(), userFromContext(r.Context()), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}

func (s *Server) handleWeeklyStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := requiredQueryInt(q, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := requiredQueryInt(q, "week")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.stats.Weekly(r.Context(), userFromContext(r.Context()), year, week)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}

func (s *Server) handleYearlyStatistics(w http.ResponseWriter, r *http.Request) {
	year, err := requiredQueryInt(r.URL.Query(), "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.stats.Yearly(r.Context(), userFromContext(r.Context()), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}
