package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"atelier-server-go/game"
	"atelier-server-go/models"
	"atelier-server-go/roster"
	"atelier-server-go/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxUploadBytes bounds import and roster uploads
const maxUploadBytes = 16 << 20

// APIHandler holds the dependencies for API handlers, like the storage facade
type APIHandler struct {
	Storage        *storage.Facade
	InitReport     storage.InitReport
	DefaultName    string
	EnableDebugAPI bool
	log            zerolog.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(facade *storage.Facade, report storage.InitReport, log zerolog.Logger) *APIHandler {
	return &APIHandler{
		Storage:     facade,
		InitReport:  report,
		DefaultName: storage.DefaultClassroomName,
		log:         log.With().Str("component", "api").Logger(),
	}
}

// --- Status Handlers ---

// PingHandler handles GET /api/ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}

// GetStatus handles GET /api/status
func (h *APIHandler) GetStatus(c *gin.Context) {
	needs, err := h.Storage.NeedsMigration(c.Request.Context())
	resp := gin.H{
		"backend":        h.Storage.Backend(),
		"init":           h.InitReport,
		"needsMigration": needs,
	}
	if err != nil {
		resp["migrationCheckError"] = err.Error()
	}
	if st := h.Storage.Ledger().Status(c.Request.Context()); st != nil {
		resp["migration"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// --- Classroom Handlers ---

// GetAllClassrooms handles GET /api/classrooms
func (h *APIHandler) GetAllClassrooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.Storage.ListClassrooms())
}

type nameRequest struct {
	Name string `json:"name"`
}

// CreateClassroom handles POST /api/classrooms
func (h *APIHandler) CreateClassroom(c *gin.Context) {
	var req nameRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, h.Storage.CreateClassroom(strings.TrimSpace(req.Name)))
}

// --- Child Handlers ---

// AddChild handles POST /api/classrooms/:classroomId/children
func (h *APIHandler) AddChild(c *gin.Context) {
	var req nameRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	child := h.Storage.AddChild(c.Param("classroomId"), strings.TrimSpace(req.Name))
	if child == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Classroom not found"})
		return
	}
	c.JSON(http.StatusCreated, child)
}

// GetChild handles GET /api/classrooms/:classroomId/children/:childId
func (h *APIHandler) GetChild(c *gin.Context) {
	child := h.Storage.GetChild(c.Param("classroomId"), c.Param("childId"))
	if child == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
		return
	}
	c.JSON(http.StatusOK, child)
}

// RenameChild handles PATCH /api/classrooms/:classroomId/children/:childId
func (h *APIHandler) RenameChild(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}
	child := h.Storage.RenameChild(c.Param("classroomId"), c.Param("childId"), name)
	if child == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
		return
	}
	c.JSON(http.StatusOK, child)
}

// DeleteChild handles DELETE /api/classrooms/:classroomId/children/:childId
func (h *APIHandler) DeleteChild(c *gin.Context) {
	if !h.Storage.DeleteChild(c.Param("classroomId"), c.Param("childId")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type historyRequest struct {
	History []models.House `json:"history"`
}

// ReplaceHistory handles PUT /api/classrooms/:classroomId/children/:childId/history.
// An empty list clears the history.
func (h *APIHandler) ReplaceHistory(c *gin.Context) {
	var req historyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	child := h.Storage.ReplaceChildHistory(c.Param("classroomId"), c.Param("childId"), req.History)
	if child == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
		return
	}
	c.JSON(http.StatusOK, child)
}

// AddHouse handles POST /api/classrooms/:classroomId/children/:childId/houses.
// A house repeating an existing color pair is rejected before anything is stored.
func (h *APIHandler) AddHouse(c *gin.Context) {
	classroomID, childID := c.Param("classroomId"), c.Param("childId")
	var house models.House
	if err := c.ShouldBindJSON(&house); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := game.ValidateHouse(house); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	child := h.Storage.GetChild(classroomID, childID)
	if child == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
		return
	}
	outcome := game.Append(child.History, house)
	if outcome.Duplicate {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "This color combination was already built",
			"duplicate": true,
			"combo":     game.ComboKey(house),
		})
		return
	}
	updated := h.Storage.ReplaceChildHistory(classroomID, childID, outcome.History)
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"child":    updated,
		"combo":    game.ComboKey(house),
		"unique":   game.UniqueCombos(updated.History),
		"total":    game.TotalCombos,
		"complete": outcome.Complete,
	})
}

// --- Roster Handlers ---

// ImportRoster handles POST /api/classrooms/:classroomId/roster
func (h *APIHandler) ImportRoster(c *gin.Context) {
	classroomID := c.Param("classroomId")
	if h.Storage.GetClassroom(classroomID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Classroom not found"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	h.log.Info().Str("filename", header.Filename).Str("classroom_id", classroomID).Msg("received roster upload")

	names, err := roster.ReadChildNames(file, h.log)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read roster: " + err.Error()})
		return
	}
	added := make([]*models.Child, 0, len(names))
	for _, name := range names {
		child := h.Storage.AddChild(classroomID, name)
		if child == nil {
			// classroom vanished mid-import (reset from another request)
			c.JSON(http.StatusNotFound, gin.H{"error": "Classroom not found"})
			return
		}
		added = append(added, child)
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": len(added),
		"classroomId":   classroomID,
		"children":      added,
	})
}

// GetReport handles GET /api/classrooms/:classroomId/report
func (h *APIHandler) GetReport(c *gin.Context) {
	classroom := h.Storage.GetClassroom(c.Param("classroomId"))
	if classroom == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Classroom not found"})
		return
	}
	var buf bytes.Buffer
	if err := roster.WriteReport(&buf, *classroom); err != nil {
		h.log.Error().Err(err).Str("classroom_id", classroom.ID).Msg("report generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="atelier-report-%s.xlsx"`, fileTimestamp(time.Now())))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// --- Migration / Export / Import Handlers ---

// GetMigration handles GET /api/migration
func (h *APIHandler) GetMigration(c *gin.Context) {
	ctx := c.Request.Context()
	needs, err := h.Storage.NeedsMigration(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("needs migration check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to check migration state"})
		return
	}
	hasData, err := h.Storage.HasLegacyData(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to read legacy store"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"needsMigration": needs,
		"hasLegacyData":  hasData,
		"backend":        h.Storage.Backend(),
	})
}

// Migrate handles POST /api/migration?force=true
func (h *APIHandler) Migrate(c *gin.Context) {
	res := h.Storage.Migrate(c.Request.Context(), storage.MigrateOptions{ForceOverwrite: c.Query("force") == "true"})
	c.JSON(resultStatus(res), res)
}

// Export handles GET /api/export?source=idb|localStorage
func (h *APIHandler) Export(c *gin.Context) {
	source := storage.Source(c.DefaultQuery("source", string(storage.SourceLocal)))
	if source != storage.SourceLegacy && source != storage.SourceLocal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source must be idb or localStorage"})
		return
	}
	payload, err := h.Storage.BuildExport(c.Request.Context(), source)
	if err != nil {
		h.log.Error().Err(err).Str("source", string(source)).Msg("export failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Export failed"})
		return
	}
	body, err := storage.EncodeExport(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Export failed"})
		return
	}
	name := fmt.Sprintf("atelier-classrooms-%s-backup-%s.json", source, fileTimestamp(payload.ExportedAt))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/json", body)
}

// Import handles POST /api/import?force=true. The body is either the raw
// JSON document or a multipart form with a "file" field.
func (h *APIHandler) Import(c *gin.Context) {
	raw, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading upload: " + err.Error()})
		return
	}
	res := h.Storage.Import(c.Request.Context(), raw, storage.ImportOptions{ForceOverwrite: c.Query("force") == "true"})
	c.JSON(resultStatus(res), res)
}

// SeedLegacy handles POST /api/debug/legacy?clearLedger=true. Only routed when the debug API is enabled.
func (h *APIHandler) SeedLegacy(c *gin.Context) {
	raw, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading upload: " + err.Error()})
		return
	}
	if err := h.Storage.SeedLegacy(c.Request.Context(), raw, c.Query("clearLedger") == "true"); err != nil {
		if storage.IsImportError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error().Err(err).Msg("seeding legacy store failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to seed legacy store"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Legacy store seeded"})
}

// Reset handles POST /api/reset
func (h *APIHandler) Reset(c *gin.Context) {
	var req nameRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = h.DefaultName
	}
	res := h.Storage.ResetAndStartFresh(c.Request.Context(), name)
	c.JSON(resultStatus(res), res)
}

// --- helpers ---

// resultStatus maps a protocol result to an HTTP status
func resultStatus(res storage.Result) int {
	switch res.Status {
	case storage.StatusOK, storage.StatusNoop:
		return http.StatusOK
	case storage.StatusConflict:
		return http.StatusConflict
	default:
		if res.InvalidInput {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}

// bindOptionalJSON decodes the body when there is one
func bindOptionalJSON(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(v)
}

func readUpload(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(c.Request.Body)
}

func fileTimestamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(time.RFC3339))
}
