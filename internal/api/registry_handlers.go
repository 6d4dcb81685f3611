package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ksred/linkdesk/internal/models"
)

type CreateDocTypeRequest struct {
	Name                 string `json:"name" binding:"required" example:"Territory"`
	Module               string `json:"module" example:"Selling"`
	IsTree               bool   `json:"is_tree"`
	SearchFields         string `json:"search_fields" example:"description"`
	TitleField           string `json:"title_field" example:"title"`
	ShowTitleFieldInLink bool   `json:"show_title_field_in_link"`
	TranslatedDocType    bool   `json:"translated_doctype"`
	SortField            string `json:"sort_field" example:"name"`
	SortOrder            string `json:"sort_order" example:"asc"`
}

type CreateRecordRequest struct {
	Name         string `json:"name" binding:"required" example:"India"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ParentRecord string `json:"parent_record" example:"Asia"`
	IsGroup      bool   `json:"is_group"`
	Idx          int    `json:"idx"`
}

type MoveRecordRequest struct {
	ParentRecord string `json:"parent_record" example:"Europe"`
}

type SaveTranslationRequest struct {
	Language       string `json:"language" binding:"required" example:"fr"`
	SourceText     string `json:"source_text" binding:"required" example:"Country"`
	TranslatedText string `json:"translated_text" binding:"required" example:"Pays"`
}

// createDocTypeHandler godoc
// @Summary Register a doctype
// @Tags registry
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CreateDocTypeRequest true "Doctype"
// @Success 201 {object} models.DocType
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /doctypes [post]
func (s *Server) createDocTypeHandler(c *gin.Context) {
	var req CreateDocTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	dt := &models.DocType{
		Name:                 req.Name,
		Module:               req.Module,
		IsTree:               req.IsTree,
		IsCustom:             true,
		SearchFields:         req.SearchFields,
		TitleField:           req.TitleField,
		ShowTitleFieldInLink: req.ShowTitleFieldInLink,
		TranslatedDocType:    req.TranslatedDocType,
		SortField:            req.SortField,
		SortOrder:            req.SortOrder,
	}
	if err := s.docTypeService.Create(c.Request.Context(), dt); err != nil {
		s.respondError(c, err, "Failed to create doctype")
		return
	}

	c.JSON(http.StatusCreated, dt)
}

// listDocTypesHandler godoc
// @Summary List doctypes
// @Tags registry
// @Produce json
// @Security ApiKeyAuth
// @Param module query string false "Filter by module"
// @Success 200 {array} models.DocType
// @Router /doctypes [get]
func (s *Server) listDocTypesHandler(c *gin.Context) {
	doctypes, err := s.docTypeService.List(c.Request.Context(), c.Query("module"))
	if err != nil {
		s.respondError(c, err, "Failed to list doctypes")
		return
	}
	c.JSON(http.StatusOK, doctypes)
}

// getDocTypeHandler godoc
// @Summary Get a doctype
// @Tags registry
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "Doctype name"
// @Success 200 {object} models.DocType
// @Failure 404 {object} ErrorResponse
// @Router /doctypes/{name} [get]
func (s *Server) getDocTypeHandler(c *gin.Context) {
	dt, err := s.docTypeService.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.respondError(c, err, "Failed to load doctype")
		return
	}
	c.JSON(http.StatusOK, dt)
}

// listRecordsHandler godoc
// @Summary List records of a doctype in tree order
// @Tags registry
// @Produce json
// @Security ApiKeyAuth
// @Param doctype path string true "Doctype"
// @Success 200 {array} models.Record
// @Router /records/{doctype} [get]
func (s *Server) listRecordsHandler(c *gin.Context) {
	records, err := s.recordService.List(c.Request.Context(), c.Param("doctype"))
	if err != nil {
		s.respondError(c, err, "Failed to list records")
		return
	}
	c.JSON(http.StatusOK, records)
}

// createRecordHandler godoc
// @Summary Insert a record
// @Description Tree doctypes are renumbered after the insert
// @Tags registry
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param doctype path string true "Doctype"
// @Param request body CreateRecordRequest true "Record"
// @Success 201 {object} models.Record
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /records/{doctype} [post]
func (s *Server) createRecordHandler(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	record := &models.Record{
		DocType:      c.Param("doctype"),
		Name:         req.Name,
		Title:        req.Title,
		Description:  req.Description,
		ParentRecord: req.ParentRecord,
		IsGroup:      req.IsGroup,
		Idx:          req.Idx,
	}
	if err := s.recordService.Insert(c.Request.Context(), record); err != nil {
		s.respondError(c, err, "Failed to insert record")
		return
	}

	c.JSON(http.StatusCreated, record)
}

// moveRecordHandler godoc
// @Summary Move a tree record under a new parent
// @Tags registry
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param doctype path string true "Doctype"
// @Param name path string true "Record name"
// @Param request body MoveRecordRequest true "New parent"
// @Success 200 {object} models.Record
// @Failure 400 {object} ErrorResponse
// @Router /records/{doctype}/{name}/move [post]
func (s *Server) moveRecordHandler(c *gin.Context) {
	var req MoveRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	record, err := s.recordService.Move(c.Request.Context(), c.Param("doctype"), c.Param("name"), req.ParentRecord)
	if err != nil {
		s.respondError(c, err, "Failed to move record")
		return
	}
	c.JSON(http.StatusOK, record)
}

// deleteRecordHandler godoc
// @Summary Delete a record without children
// @Tags registry
// @Security ApiKeyAuth
// @Param doctype path string true "Doctype"
// @Param name path string true "Record name"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /records/{doctype}/{name} [delete]
func (s *Server) deleteRecordHandler(c *gin.Context) {
	if err := s.recordService.Delete(c.Request.Context(), c.Param("doctype"), c.Param("name")); err != nil {
		s.respondError(c, err, "Failed to delete record")
		return
	}
	c.Status(http.StatusNoContent)
}

// saveTranslationHandler godoc
// @Summary Add or replace a translation
// @Tags registry
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SaveTranslationRequest true "Translation"
// @Success 200 {object} models.Translation
// @Failure 400 {object} ErrorResponse
// @Router /translations [post]
func (s *Server) saveTranslationHandler(c *gin.Context) {
	if s.translator == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Translations are disabled"})
		return
	}

	var req SaveTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	tr := &models.Translation{
		Language:       req.Language,
		SourceText:     req.SourceText,
		TranslatedText: req.TranslatedText,
	}
	if err := s.translator.Save(c.Request.Context(), tr); err != nil {
		s.respondError(c, err, "Failed to save translation")
		return
	}
	c.JSON(http.StatusOK, tr)
}

// recentActivityHandler godoc
// @Summary Recent activity of the caller
// @Tags activity
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Max entries" default(10)
// @Success 200 {array} services.ActivityEntry
// @Router /activity [get]
func (s *Server) recentActivityHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not found"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	entries, err := s.activityService.Recent(c.Request.Context(), &user.ID, limit)
	if err != nil {
		s.respondError(c, err, "Failed to load activity")
		return
	}
	c.JSON(http.StatusOK, entries)
}
