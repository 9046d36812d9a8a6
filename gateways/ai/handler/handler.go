package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xilidan/signposting/pkg/json"
	"github.com/xilidan/signposting/services/ai/usecase"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ReadinessChecker reports the gRPC health status of the service.
type ReadinessChecker interface {
	Check(ctx context.Context) (*healthpb.HealthCheckResponse, error)
}

type Handler struct {
	usecase  usecase.Usecase
	ready    ReadinessChecker
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time
}

func New(usc usecase.Usecase, ready ReadinessChecker, log *slog.Logger) *Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		usecase:  usc,
		ready:    ready,
		validate: validate,
		log:      log,
		now:      time.Now,
	}
}

// decode parses and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.ParseJSON(w, r, req); err != nil {
		h.log.Warn("invalid request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		json.WriteError(w, http.StatusBadRequest, err)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		json.WriteError(w, http.StatusBadRequest, validationError(err))
		return false
	}
	return true
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
}
