package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"miriesgo/internal/upload/models"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/httputil"
	"miriesgo/pkg/platform/middleware/request"
)

const formField = "file"

type Service interface {
	Submit(ctx context.Context, fileName string, data []byte) (*models.Job, error)
	Job(ctx context.Context, jobID string) (*models.Job, error)
}

type Handler struct {
	service  Service
	logger   *slog.Logger
	maxBytes int64
}

func New(service Service, logger *slog.Logger, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Handler{service: service, logger: logger, maxBytes: maxBytes}
}

// Register mounts the upload routes. The caller gates them by role.
func (h *Handler) Register(r chi.Router) {
	r.Post("/files/upload", h.HandleUpload)
	r.Get("/files/jobs/{id}", h.HandleGetJob)
}

type UploadAcceptedResponse struct {
	JobID    string `json:"jobId"`
	Status   string `json:"status"`
	FileName string `json:"fileName"`
	Message  string `json:"message"`
}

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	// multipart framing needs some room above the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)
	file, header, err := r.FormFile(formField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "el archivo excede el tamaño máximo permitido"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "se requiere el campo 'file'"))
		return
	}
	defer file.Close()
	if header.Size > h.maxBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "el archivo excede el tamaño máximo permitido"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		h.logger.ErrorContext(ctx, "read upload failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no se pudo leer el archivo"))
		return
	}
	if int64(len(data)) > h.maxBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "el archivo excede el tamaño máximo permitido"))
		return
	}

	job, err := h.service.Submit(ctx, header.Filename, data)
	if err != nil {
		h.logger.ErrorContext(ctx, "submit upload failed",
			"error", err,
			"request_id", requestID,
			"file_name", header.Filename,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, UploadAcceptedResponse{
		JobID:    job.ID,
		Status:   string(job.Status),
		FileName: job.FileName,
		Message:  "Archivo recibido. El procesamiento en segundo plano ha comenzado.",
	})
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	jobID := chi.URLParam(r, "id")
	if err := uuid.Validate(jobID); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid job id"))
		return
	}
	job, err := h.service.Job(ctx, jobID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "get upload job failed", "error", err, "request_id", requestID)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}
