package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/pepuns/pepuns-api/pkg/model"
	"github.com/sirupsen/logrus"
)

// writeError sends the standard error body: a machine-readable kind plus
// optional details the client can act on.
func writeError(w http.ResponseWriter, httpStatus int, kind string, details interface{}) {
	logrus.Debugf("responding with error %q (%d)", kind, httpStatus)
	o := model.ErrorResponse{
		Error:   kind,
		Details: details,
	}
	res, _ := json.Marshal(o)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(res)
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(res)
}
