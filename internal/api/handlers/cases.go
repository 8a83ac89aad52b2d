package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/queue"
	"github.com/your-org/reclaim/internal/storage"
	"github.com/your-org/reclaim/pkg/dto"
)

type CaseHandler struct {
	db       *storage.PostgresStore
	photos   *storage.MinIOStore
	producer *queue.Producer
}

func NewCaseHandler(db *storage.PostgresStore, photos *storage.MinIOStore, producer *queue.Producer) *CaseHandler {
	return &CaseHandler{db: db, photos: photos, producer: producer}
}

func (h *CaseHandler) Create(c *gin.Context) {
	var req dto.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cse := &models.Case{
		Type:     models.CaseType(req.Type),
		Category: req.Category,
		Title:    req.Title,
		Lat:      req.Lat,
		Lon:      req.Lon,
	}
	if err := h.db.CreateCase(c.Request.Context(), cse); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, caseToResponse(cse))
}

func (h *CaseHandler) List(c *gin.Context) {
	var caseType *models.CaseType
	if t := c.Query("type"); t != "" {
		ct := models.CaseType(t)
		caseType = &ct
	}

	cases, err := h.db.ListCases(c.Request.Context(), caseType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.CaseResponse, 0, len(cases))
	for i := range cases {
		resp = append(resp, caseToResponse(&cases[i]))
	}
	c.JSON(http.StatusOK, gin.H{"cases": resp, "total": len(resp)})
}

func (h *CaseHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	cse, err := h.db.GetCase(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cse == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}
	c.JSON(http.StatusOK, caseToResponse(cse))
}

// Close marks a case closed and notifies the worker so every open match
// touching the case expires.
func (h *CaseHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	if err := h.db.CloseCase(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctrl, _ := json.Marshal(models.CaseControl{Action: "closed", CaseID: id})
	if err := h.producer.PublishCaseControl(ctrl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "case closed but control publish failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// UploadPhoto accepts a multipart image, stores it and publishes the
// photo-ready task that triggers matching.
func (h *CaseHandler) UploadPhoto(c *gin.Context) {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	cse, err := h.db.GetCase(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cse == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}
	if cse.Status != models.CaseStatusOpen {
		c.JSON(http.StatusConflict, gin.H{"error": "case is closed"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	objectKey := "photos/" + caseID.String() + "/" + uuid.New().String() + "_" + header.Filename
	if err := h.photos.PutObject(c.Request.Context(), objectKey, imageData, header.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store image failed"})
		return
	}

	photo := &models.Photo{CaseID: caseID, ObjectKey: objectKey}
	if err := h.db.CreatePhoto(c.Request.Context(), photo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.PhotoTask{
		PhotoID:   photo.ID,
		CaseID:    caseID,
		ObjectKey: objectKey,
		Timestamp: time.Now(),
	}
	if err := h.producer.PublishPhotoTask(c.Request.Context(), caseID.String(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "photo stored but task publish failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.PhotoResponse{
		ID:        photo.ID,
		CaseID:    photo.CaseID,
		Status:    string(photo.Status),
		ImageURL:  "/v1/photos/" + photo.ID.String() + "/image",
		CreatedAt: photo.CreatedAt.Format(time.RFC3339),
	})
}

// PhotoImage proxies the stored photo bytes.
func (h *CaseHandler) PhotoImage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	data, err := h.photos.GetObject(c.Request.Context(), photo.ObjectKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func caseToResponse(cse *models.Case) dto.CaseResponse {
	return dto.CaseResponse{
		ID:        cse.ID,
		Type:      string(cse.Type),
		Category:  cse.Category,
		Title:     cse.Title,
		Lat:       cse.Lat,
		Lon:       cse.Lon,
		Status:    string(cse.Status),
		CreatedAt: cse.CreatedAt.Format(time.RFC3339),
	}
}
