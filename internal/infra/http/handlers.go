package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"picproof/internal/domain"
	"picproof/internal/infra/geocode"
	"picproof/internal/usecase"

	"github.com/gin-gonic/gin"
)

// maxUploadBytes bounds the multipart body read into memory.
const maxUploadBytes = 32 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type uploadResponse struct {
	ID        string `json:"id"`
	VerifyURL string `json:"verify_url"`
}

type captureResponse struct {
	ID               string   `json:"id"`
	CreatedServerUTC string   `json:"created_server_utc"`
	DeviceTimeUTC    string   `json:"device_time_utc"`
	TZOffsetMin      int      `json:"tz_offset_min"`
	Lat              float64  `json:"lat"`
	Lon              float64  `json:"lon"`
	AccuracyM        *float64 `json:"accuracy_m,omitempty"`
	AltitudeM        *float64 `json:"altitude_m,omitempty"`
	Provider         string   `json:"provider,omitempty"`
	IsMock           bool     `json:"is_mock"`
	DeviceModel      string   `json:"device_model,omitempty"`
	AndroidAPI       int      `json:"android_api,omitempty"`
	AppVersion       string   `json:"app_version,omitempty"`
	ImageKeyOriginal string   `json:"image_key_original"`
	ImageKeyWeb      string   `json:"image_key_web"`
	HashSHA256       string   `json:"hash_sha256"`
}

type captureListResponse struct {
	Items    []captureResponse `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

type verifyResponse struct {
	ID               string  `json:"id"`
	CreatedServerUTC string  `json:"created_server_utc"`
	DeviceTimeUTC    string  `json:"device_time_utc"`
	TZOffsetMin      int     `json:"tz_offset_min"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	HashSHA256       string  `json:"hash_sha256"`
	PlaceName        string  `json:"place_name,omitempty"`
	WebImageURL      string  `json:"web_image_url"`
	QRURL            string  `json:"qr_url,omitempty"`
	VerifyURL        string  `json:"verify_url"`
}

type adminEditRequest struct {
	Changes   map[string]string `json:"changes"`
	ChangedBy string            `json:"changed_by"`
}

type auditEntryResponse struct {
	ID        string `json:"id"`
	CaptureID string `json:"capture_id"`
	Field     string `json:"field"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	ChangedBy string `json:"changed_by"`
	ChangedAt string `json:"changed_at_utc"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	mode := "no-db"
	if s.store != nil && s.store.DB != nil {
		mode = "db"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
}

func (s *Server) handleUpload(c *gin.Context) {
	if !s.requireAPIKey(c) {
		return
	}
	if !s.allowRate(c) {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "MISSING_FILE", "image field is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		writeErrorCode(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "upload exceeds size limit")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "MISSING_FILE", "cannot read upload")
		return
	}
	defer file.Close()
	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil || len(image) > maxUploadBytes {
		writeErrorCode(c, http.StatusBadRequest, "MISSING_FILE", "cannot read upload")
		return
	}

	req := usecase.AcceptUploadRequest{
		Image:         image,
		DeviceTimeUTC: c.PostForm("device_time_utc"),
		Provider:      c.PostForm("provider"),
		DeviceModel:   c.PostForm("device_model"),
		AppVersion:    c.PostForm("app_version"),
		Timestamp:     c.GetHeader("X-Timestamp"),
		Nonce:         c.GetHeader("X-Nonce"),
		Signature:     c.GetHeader("X-Sign"),
	}

	var ok bool
	if req.Lat, ok = formFloat(c, "lat"); !ok {
		return
	}
	if req.Lon, ok = formFloat(c, "lon"); !ok {
		return
	}
	if req.TZOffsetMin, ok = formInt(c, "tz_offset_min", 0); !ok {
		return
	}
	if req.AndroidAPI, ok = formInt(c, "android_api", 0); !ok {
		return
	}
	if req.AccuracyM, ok = formFloatPtr(c, "accuracy_m"); !ok {
		return
	}
	if req.AltitudeM, ok = formFloatPtr(c, "altitude_m"); !ok {
		return
	}
	req.IsMock = c.PostForm("is_mock") == "true" || c.PostForm("is_mock") == "1"

	resp, err := s.uploadUC.Execute(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, uploadResponse{ID: resp.ID, VerifyURL: resp.VerifyURL})
}

func (s *Server) handleVerifyPage(c *gin.Context) {
	view, err := s.resolveUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && s.htmlReady {
			c.HTML(http.StatusNotFound, "verify_not_found.html", gin.H{})
			return
		}
		writeError(c, err)
		return
	}
	if !s.htmlReady {
		c.JSON(http.StatusOK, s.verifyJSON(view))
		return
	}
	c.HTML(http.StatusOK, "verify.html", gin.H{
		"ID":            view.ID,
		"CreatedAt":     view.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		"DeviceTimeUTC": view.DeviceTimeUTC,
		"Lat":           strconv.FormatFloat(view.Lat, 'f', 6, 64),
		"Lon":           strconv.FormatFloat(view.Lon, 'f', 6, 64),
		"Hash":          view.HashSHA256,
		"PlaceName":     view.PlaceName,
		"WebImageURL":   s.artifactURL(view.WebImageKey),
		"QRURL":         s.artifactURL(view.QRKey),
		"VerifyURL":     view.VerifyURL,
		"StaticMapURL":  geocode.StaticMapURL(s.mapsAPIKey, view.Lat, view.Lon),
		"EmbedMapURL":   geocode.EmbedMapURL(view.Lat, view.Lon),
	})
}

func (s *Server) handleVerifyJSON(c *gin.Context) {
	view, err := s.resolveUC.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.verifyJSON(view))
}

func (s *Server) verifyJSON(view *usecase.PublicView) verifyResponse {
	return verifyResponse{
		ID:               view.ID,
		CreatedServerUTC: view.CreatedAt.UTC().Format(time.RFC3339),
		DeviceTimeUTC:    view.DeviceTimeUTC,
		TZOffsetMin:      view.TZOffsetMin,
		Lat:              view.Lat,
		Lon:              view.Lon,
		HashSHA256:       view.HashSHA256,
		PlaceName:        view.PlaceName,
		WebImageURL:      s.artifactURL(view.WebImageKey),
		QRURL:            s.artifactURL(view.QRKey),
		VerifyURL:        view.VerifyURL,
	}
}

// artifactURL maps a storage key to its public URL. Only the web and qr
// namespaces are served; anything else resolves to nothing.
func (s *Server) artifactURL(key string) string {
	if key == "" {
		return ""
	}
	return s.cfg.PublicBaseURL + "/storage/" + key
}

func (s *Server) handleAdminListCaptures(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	records, total, err := s.captures.List(c.Request.Context(), c.Query("q"), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]captureResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, captureJSON(rec))
	}
	c.JSON(http.StatusOK, captureListResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) handleAdminGetCapture(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	rec, err := s.captures.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, captureJSON(*rec))
}

func (s *Server) handleAdminEditCapture(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	var req adminEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.ChangedBy == "" {
		req.ChangedBy = "admin"
	}
	entries, err := s.editUC.Execute(c.Request.Context(), usecase.AdminEditRequest{
		CaptureID: c.Param("id"),
		Changes:   req.Changes,
		ChangedBy: req.ChangedBy,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, auditJSON(entry))
	}
	c.JSON(http.StatusOK, gin.H{"applied": out})
}

func (s *Server) handleAdminListAudit(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	id := c.Param("id")
	if _, err := s.captures.GetByID(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	entries, err := s.audits.ListByCapture(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, auditJSON(entry))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func captureJSON(rec domain.CaptureRecord) captureResponse {
	return captureResponse{
		ID:               rec.ID,
		CreatedServerUTC: rec.CreatedAt.UTC().Format(time.RFC3339),
		DeviceTimeUTC:    rec.DeviceTimeUTC,
		TZOffsetMin:      rec.TZOffsetMin,
		Lat:              rec.Lat,
		Lon:              rec.Lon,
		AccuracyM:        rec.AccuracyM,
		AltitudeM:        rec.AltitudeM,
		Provider:         rec.Provider,
		IsMock:           rec.IsMock,
		DeviceModel:      rec.DeviceModel,
		AndroidAPI:       rec.AndroidAPI,
		AppVersion:       rec.AppVersion,
		ImageKeyOriginal: rec.ImageKeyOriginal,
		ImageKeyWeb:      rec.ImageKeyWeb,
		HashSHA256:       rec.HashSHA256,
	}
}

func auditJSON(entry domain.AuditEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:        entry.ID,
		CaptureID: entry.CaptureID,
		Field:     entry.Field,
		OldValue:  entry.OldValue,
		NewValue:  entry.NewValue,
		ChangedBy: entry.ChangedBy,
		ChangedAt: entry.ChangedAt.UTC().Format(time.RFC3339),
	}
}

func formFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.PostForm(name)
	if raw == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_FIELD", name+" is required")
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_FIELD", "invalid "+name)
		return 0, false
	}
	return v, true
}

func formFloatPtr(c *gin.Context, name string) (*float64, bool) {
	raw := c.PostForm(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_FIELD", "invalid "+name)
		return nil, false
	}
	return &v, true
}

func formInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.PostForm(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_FIELD", "invalid "+name)
		return 0, false
	}
	return v, true
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		status, code = http.StatusUnauthorized, "MISSING_CREDENTIALS"
	case errors.Is(err, domain.ErrMalformedTimestamp):
		status, code = http.StatusUnauthorized, "BAD_TIMESTAMP"
	case errors.Is(err, domain.ErrClockSkewExceeded):
		status, code = http.StatusUnauthorized, "CLOCK_SKEW"
	case errors.Is(err, domain.ErrBadSignature):
		status, code = http.StatusUnauthorized, "BAD_SIGNATURE"
	case errors.Is(err, domain.ErrReplayDetected):
		status, code = http.StatusUnauthorized, "REPLAY"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrInvalidCoordinates):
		status, code = http.StatusBadRequest, "INVALID_COORDINATES"
	case errors.Is(err, domain.ErrImageInvalid):
		status, code = http.StatusBadRequest, "INVALID_IMAGE"
	case errors.Is(err, domain.ErrFieldNotEditable):
		status, code = http.StatusBadRequest, "FIELD_NOT_EDITABLE"
	case errors.Is(err, domain.ErrPolicyRejected):
		status, code = http.StatusForbidden, "POLICY_REJECTED"
	case errors.Is(err, domain.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrStorageFailure):
		status, code = http.StatusInternalServerError, "STORAGE_FAILURE"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: message})
}
