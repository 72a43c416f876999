package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/louisbranch/crowdshare/internal/platform/errors"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code     string            `json:"code"`
	Kind     string            `json:"kind"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps an application error to its HTTP status. Errors without a
// code are reported as UNKNOWN without leaking their text.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.New(apperrors.CodeUnknown, "internal error")
	}
	message := appErr.Message
	if appErr.Code == apperrors.CodeUnknown {
		message = "internal error"
	}
	writeJSON(w, appErr.Code.HTTPStatus(), errorBody{
		Code:     string(appErr.Code),
		Kind:     string(appErr.Kind()),
		Message:  message,
		Metadata: appErr.Metadata,
	})
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.New(apperrors.CodeInvalidArgument, "request body is required")
		}
		return apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("invalid request body: %v", err), err)
	}
	if dec.More() {
		return apperrors.New(apperrors.CodeInvalidArgument, "request body must contain a single JSON object")
	}
	return nil
}
