package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pyama86/dispatchd/domain/entity"
)

var validate = newValidator()

// newValidator はフィールドエラーに json タグの名前を使う
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", slog.Any("err", err))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError はドメインのエラーを HTTP ステータスに対応させる
func writeError(w http.ResponseWriter, err error) {
	var (
		verr *entity.ValidationError
		perr *entity.PermissionError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &perr):
		writeMessage(w, http.StatusForbidden, perr.Reason)
	case errors.Is(err, entity.ErrPermissionDenied):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, entity.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, entity.ErrConflict):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Failed to handle request", slog.Any("err", err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// bind は JSON を読み込み、validate タグで検証する
func bind(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return entity.NewValidationError("body", "invalid json: "+err.Error())
	}
	if err := validate.Struct(v); err != nil {
		return validationFailure(err)
	}
	return nil
}

// validationFailure は validator のエラーをフィールドごとの ValidationError に変換する
func validationFailure(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	verr := &entity.ValidationError{}
	for _, fe := range fieldErrors {
		verr.Add(fe.Field(), fe.Tag())
	}
	return verr
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, entity.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, entity.NewValidationError(name, "must be an integer")
	}
	return v, nil
}
