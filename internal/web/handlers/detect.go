package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/kozaktomas/shop-kiosk/internal/constants"
	"github.com/kozaktomas/shop-kiosk/internal/detection"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
)

// FrameSubmitter runs a frame through recognition and classification.
type FrameSubmitter interface {
	Submit(ctx context.Context, frame []byte) (*detection.Result, error)
}

// DetectHandler handles camera frame and one-click endpoints
type DetectHandler struct {
	detector FrameSubmitter
	manager  *lifecycle.Manager
}

// NewDetectHandler creates a new detect handler
func NewDetectHandler(detector FrameSubmitter, manager *lifecycle.Manager) *DetectHandler {
	return &DetectHandler{detector: detector, manager: manager}
}

type detectRequest struct {
	Image []byte `json:"image"` // base64 in JSON
}

type registerDetectedRequest struct {
	Name string `json:"name"`
}

// Detect accepts a frame as a raw image body, a JSON {"image": base64} body or a
// multipart "frame" file, and returns the classified faces. Frames arriving too
// fast or while another frame is processed get 429.
func (h *DetectHandler) Detect(w http.ResponseWriter, r *http.Request) {
	frame, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.detector.Submit(r.Context(), frame)
	if err != nil {
		var detErr *recognition.DetectionError
		var procErr *recognition.ProcessError
		switch {
		case errors.Is(err, detection.ErrThrottled):
			respondErrorCode(w, http.StatusTooManyRequests, codeBusy, err.Error())
		case errors.As(err, &detErr):
			respondError(w, http.StatusUnprocessableEntity, detErr.Error())
		case errors.As(err, &procErr), errors.Is(err, recognition.ErrInitializationTimeout),
			errors.Is(err, recognition.ErrNotReady):
			respondError(w, http.StatusServiceUnavailable, "face recognition unavailable")
		default:
			respondOperationError(w, err, "face detection failed")
		}
		return
	}

	resp := detectResponse{
		RequestID:  result.RequestID,
		Width:      result.FrameWidth,
		Height:     result.FrameHeight,
		Candidates: make([]candidateResponse, 0, len(result.Candidates)),
	}
	for _, c := range result.Candidates {
		resp.Candidates = append(resp.Candidates, toCandidateResponse(c, result.FrameWidth, result.FrameHeight))
	}
	respondJSON(w, http.StatusOK, resp)
}

// CheckInLast checks in the customer of the most recent matched face.
func (h *DetectHandler) CheckInLast(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.CheckInLastDetected(r.Context())
	if err != nil {
		respondOperationError(w, err, "failed to check in customer")
		return
	}
	respondJSON(w, http.StatusOK, toCustomerResponse(c))
}

// RegisterLast registers the most recent unmatched face.
func (h *DetectHandler) RegisterLast(w http.ResponseWriter, r *http.Request) {
	var req registerDetectedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	c, err := h.manager.RegisterLastDetected(r.Context(), req.Name)
	if err != nil {
		respondOperationError(w, err, "failed to register customer")
		return
	}
	respondJSON(w, http.StatusCreated, toCustomerResponse(c))
}

func readFrame(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	limited := io.LimitReader(r.Body, constants.MaxFrameUploadSize+1)

	var frame []byte
	switch mediaType {
	case "application/json":
		var req detectRequest
		if err := json.NewDecoder(limited).Decode(&req); err != nil {
			return nil, errors.New(errInvalidRequestBody)
		}
		frame = req.Image
	case "multipart/form-data":
		if err := r.ParseMultipartForm(constants.MaxFrameUploadSize); err != nil {
			return nil, errors.New("failed to parse multipart form")
		}
		file, _, err := r.FormFile("frame")
		if err != nil {
			return nil, errors.New("frame file is required")
		}
		defer file.Close()
		frame, err = io.ReadAll(io.LimitReader(file, constants.MaxFrameUploadSize+1))
		if err != nil {
			return nil, errors.New("failed to read frame")
		}
	default:
		var err error
		frame, err = io.ReadAll(limited)
		if err != nil {
			return nil, errors.New("failed to read frame")
		}
	}

	if len(frame) == 0 {
		return nil, errors.New("frame is empty")
	}
	if len(frame) > constants.MaxFrameUploadSize {
		return nil, errors.New("frame is too large")
	}
	return frame, nil
}
