package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"google.golang.org/grpc/codes"

	apperrors "github.com/agorahq/arena/internal/platform/errors"
	"github.com/agorahq/arena/internal/platform/errors/i18n"
)

// maxRequestBody caps JSON request bodies well above the largest allowed
// content field.
const maxRequestBody = 64 << 10

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError renders a structured error with a localized message. Codes map
// to HTTP statuses through the shared gRPC classification so both surfaces
// agree on the taxonomy.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		log.Printf("internal error on %s %s: %v", r.Method, r.URL.Path, err)
		appErr = apperrors.New(apperrors.CodeUnknown, "internal error")
	}

	locale := i18n.ResolveLocale(r.Header.Get("Accept-Language"))
	message := i18n.GetCatalog(locale).Format(string(appErr.Code), appErr.Metadata)

	writeJSON(w, httpStatus(appErr.Code.GRPCCode()), errorEnvelope{Error: errorBody{
		Code:    string(appErr.Code),
		Message: message,
	}})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Aborted:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidRequest, fmt.Sprintf("invalid request body: %v", err), err)
	}
	return nil
}
