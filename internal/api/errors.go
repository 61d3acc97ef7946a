package api

import (
	"net/http"
	"strconv"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
)

// writeError maps an apperror.AppError onto the representative HTTP
// status from apperror.GetStatusCode and renders it as JSON.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperror.GetStatusCode(err), map[string]string{
		"error": err.Error(),
		"type":  string(apperror.GetType(err)),
	})
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
