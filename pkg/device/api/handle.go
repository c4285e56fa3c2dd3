package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/vaxguard/device-trust/pkg/attempt"
	"github.com/vaxguard/device-trust/pkg/device"
	securityerrors "github.com/vaxguard/device-trust/pkg/errors"
	"github.com/vaxguard/device-trust/pkg/notify"
)

// DeviceHandler handles HTTP requests for device trust evaluation and
// administration
type DeviceHandler struct {
	trustGate       *device.TrustGate
	approvalService *device.ApprovalService
	ledger          *attempt.Ledger
	notifier        notify.DeviceNotifier
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(trustGate *device.TrustGate, approvalService *device.ApprovalService, ledger *attempt.Ledger, notifier notify.DeviceNotifier) *DeviceHandler {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &DeviceHandler{
		trustGate:       trustGate,
		approvalService: approvalService,
		ledger:          ledger,
		notifier:        notifier,
	}
}

// CheckRequest represents the request body for a trust check. The device
// signals and source IP are taken from the request itself, not the body.
type CheckRequest struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username,omitempty"`
}

// CheckResponse represents the outcome of a trust check
type CheckResponse struct {
	Status           string `json:"status"`
	Allowed          bool   `json:"allowed"`
	Error            string `json:"error,omitempty"`
	Message          string `json:"message,omitempty"`
	DeviceID         string `json:"device_id,omitempty"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
}

// ApproveRequest represents an administrator's decision on a device
type ApproveRequest struct {
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"`
}

// DeviceResponse represents a trust record in API responses
type DeviceResponse struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	Fingerprint   string     `json:"fingerprint"`
	DeviceName    string     `json:"device_name"`
	Browser       string     `json:"browser"`
	OS            string     `json:"os"`
	DeviceType    string     `json:"device_type"`
	LastIPAddress string     `json:"last_ip_address"`
	Status        string     `json:"status"`
	FirstSeen     time.Time  `json:"first_seen"`
	LastSeen      time.Time  `json:"last_seen"`
	ApprovedBy    *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// ListDevicesResponse represents the response body for device listings
type ListDevicesResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Devices []DeviceResponse `json:"devices"`
}

// ListAttemptsResponse represents the response body for the attempt listing
type ListAttemptsResponse struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message"`
	Attempts []attempt.LoginAttempt `json:"attempts"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// CheckDevice evaluates the trust gate for an authenticated account and the
// device presenting this request. The outcome is also appended to the attempt
// ledger; a denial renders 403 with the reason, never a 5xx.
func (h *DeviceHandler) CheckDevice(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid account ID", err.Error())
		return
	}

	sig := device.SignalsFromRequest(r)
	sourceIP := device.ClientIP(r)

	decision, err := h.trustGate.Evaluate(r.Context(), accountID, sig, sourceIP)
	if err != nil {
		slog.Error("Trust gate evaluation failed", "error", err, "accountID", accountID)
		renderStructuredError(w, r, err, "Trust evaluation failed")
		return
	}

	h.recordAttempt(r, req, accountID, sig, sourceIP, decision)

	if decision.Allowed {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, CheckResponse{
			Status:  "success",
			Allowed: true,
			Message: "Device is trusted",
		})
		return
	}

	if decision.Reason == device.DenyNewDevice && decision.DeviceID != nil {
		h.notifyPending(r, *decision.DeviceID)
	}

	response := CheckResponse{
		Status:           "denied",
		Allowed:          false,
		Error:            string(decision.Reason),
		Message:          decision.Reason.Message(),
		RequiresApproval: decision.RequiresApproval,
	}
	if decision.DeviceID != nil {
		response.DeviceID = decision.DeviceID.String()
	}
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, response)
}

// recordAttempt appends the check outcome to the ledger. Ledger failures are
// logged; the decision already made still stands.
func (h *DeviceHandler) recordAttempt(r *http.Request, req CheckRequest, accountID uuid.UUID, sig device.Signals, sourceIP string, decision device.Decision) {
	params := attempt.RecordParams{
		Username:    req.Username,
		IPAddress:   sourceIP,
		Success:     decision.Allowed,
		AccountID:   &accountID,
		Fingerprint: device.Fingerprint(sig),
		UserAgent:   sig.UserAgent,
	}
	if !decision.Allowed {
		params.FailureReason = string(decision.Reason)
	}

	if _, err := h.ledger.Record(r.Context(), params); err != nil {
		slog.Error("Failed to record login attempt", "error", err, "accountID", accountID)
	}
}

// notifyPending tells the administrator channel about a newly pending device.
// Notification failures only log; the decision already rendered stands.
func (h *DeviceHandler) notifyPending(r *http.Request, deviceID uuid.UUID) {
	dev, err := h.approvalService.Get(r.Context(), deviceID)
	if err != nil {
		slog.Error("Failed to load device for notification", "error", err, "deviceID", deviceID)
		return
	}
	if err := h.notifier.NotifyPendingDevice(r.Context(), dev); err != nil {
		slog.Error("Failed to send pending device notification", "error", err, "deviceID", deviceID)
	}
}

// ListPendingDevices handles listing devices awaiting approval, optionally
// scoped to one facility via the facility_id query parameter
func (h *DeviceHandler) ListPendingDevices(w http.ResponseWriter, r *http.Request) {
	var facilityID *uuid.UUID
	if raw := r.URL.Query().Get("facility_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			renderErrorResponse(w, r, http.StatusBadRequest, "Invalid facility ID", err.Error())
			return
		}
		facilityID = &parsed
	}

	devices, err := h.approvalService.ListPending(r.Context(), facilityID)
	if err != nil {
		slog.Error("Failed to list pending devices", "error", err)
		renderStructuredError(w, r, err, "Failed to list pending devices")
		return
	}

	renderDeviceList(w, r, devices, "Pending devices retrieved successfully")
}

// ApproveDevice handles an administrator's decision on a pending device. The
// approver identity comes from the verified JWT subject claim.
func (h *DeviceHandler) ApproveDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := uuid.Parse(chi.URLParam(r, "device_id"))
	if err != nil {
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid device ID", err.Error())
		return
	}

	approvedBy, ok := approverFromClaims(r)
	if !ok {
		renderErrorResponse(w, r, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	approved, err := h.approvalService.Approve(r.Context(), deviceID, device.ApproveParams{
		Status:        device.Status(req.Status),
		Notes:         req.Notes,
		ExpiresInDays: req.ExpiresInDays,
		ApprovedBy:    approvedBy,
	})
	if err != nil {
		slog.Error("Failed to approve device", "error", err, "deviceID", deviceID)
		renderStructuredError(w, r, err, "Failed to approve device")
		return
	}

	renderDevice(w, r, approved, "Device approval applied")
}

// RevokeDevice handles blocking a previously decided device
func (h *DeviceHandler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := uuid.Parse(chi.URLParam(r, "device_id"))
	if err != nil {
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid device ID", err.Error())
		return
	}

	revoked, err := h.approvalService.Revoke(r.Context(), deviceID)
	if err != nil {
		slog.Error("Failed to revoke device", "error", err, "deviceID", deviceID)
		renderStructuredError(w, r, err, "Failed to revoke device")
		return
	}

	renderDevice(w, r, revoked, "Device revoked")
}

// GetDevicesByAccount handles listing all devices registered for one account
func (h *DeviceHandler) GetDevicesByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "account_id"))
	if err != nil {
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid account ID", err.Error())
		return
	}

	devices, err := h.approvalService.ListForAccount(r.Context(), accountID)
	if err != nil {
		slog.Error("Failed to get devices for account", "error", err, "accountID", accountID)
		renderStructuredError(w, r, err, "Failed to get devices for account")
		return
	}

	renderDeviceList(w, r, devices, "Devices retrieved successfully")
}

// ListAttempts handles the administrative listing of recent login attempts
func (h *DeviceHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			renderErrorResponse(w, r, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	attempts, err := h.ledger.ListRecent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list login attempts", "error", err)
		renderStructuredError(w, r, err, "Failed to list login attempts")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ListAttemptsResponse{
		Status:   "success",
		Message:  "Login attempts retrieved successfully",
		Attempts: attempts,
	})
}

// Handler returns a http.Handler for the device trust API
func Handler(h *DeviceHandler) http.Handler {
	r := chi.NewRouter()

	r.Post("/check", h.CheckDevice)
	r.Get("/pending", h.ListPendingDevices)
	r.Post("/{device_id}/approve", h.ApproveDevice)
	r.Post("/{device_id}/revoke", h.RevokeDevice)
	r.Get("/account/{account_id}", h.GetDevicesByAccount)
	r.Get("/attempts", h.ListAttempts)

	return r
}

// approverFromClaims extracts the approver's account ID from JWT claims
func approverFromClaims(r *http.Request) (uuid.UUID, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return uuid.Nil, false
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func toDeviceResponse(dev device.TrustedDevice) DeviceResponse {
	var response DeviceResponse
	if err := copier.Copy(&response, &dev); err != nil {
		slog.Error("Failed to map device response", "error", err)
	}
	response.ID = dev.ID.String()
	response.AccountID = dev.AccountID.String()
	response.Status = string(dev.Status)
	response.DeviceType = string(dev.DeviceType)
	return response
}

func renderDevice(w http.ResponseWriter, r *http.Request, dev device.TrustedDevice, message string) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, struct {
		Status  string         `json:"status"`
		Message string         `json:"message"`
		Device  DeviceResponse `json:"device"`
	}{
		Status:  "success",
		Message: message,
		Device:  toDeviceResponse(dev),
	})
}

func renderDeviceList(w http.ResponseWriter, r *http.Request, devices []device.TrustedDevice, message string) {
	responses := make([]DeviceResponse, 0, len(devices))
	for _, dev := range devices {
		responses = append(responses, toDeviceResponse(dev))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ListDevicesResponse{
		Status:  "success",
		Message: message,
		Devices: responses,
	})
}

// renderStructuredError maps a structured error to its HTTP status; anything
// else renders 500
func renderStructuredError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := securityerrors.MapErrorCodeToHTTPStatus(securityerrors.GetCode(err))
	renderErrorResponse(w, r, status, message, err.Error())
}

// renderErrorResponse renders an error response with the given status code and message
func renderErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message, errorDetail string) {
	response := ErrorResponse{
		Status:  "error",
		Message: message,
	}
	if errorDetail != "" {
		response.Error = errorDetail
	}

	render.Status(r, statusCode)
	render.JSON(w, r, response)
}
