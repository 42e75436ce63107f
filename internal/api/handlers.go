package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"alliance-observatory/internal/models"
	"alliance-observatory/internal/ocr"
	"alliance-observatory/internal/pipeline"
	"alliance-observatory/internal/security"
)

func apiError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// uploadScreenshot accepts a multipart image plus optional hints and
// enqueues it. Processing is asynchronous; the response carries the job id
// to poll or watch on the stream.
func (s *Server) uploadScreenshot(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		apiError(c, http.StatusBadRequest, "missing_file", "multipart field 'file' is required")
		return
	}
	if fileHeader.Size > ocr.MaxImageBytes {
		apiError(c, http.StatusRequestEntityTooLarge, "image_too_large",
			fmt.Sprintf("image exceeds %d bytes", ocr.MaxImageBytes))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		apiError(c, http.StatusBadRequest, "unreadable_file", "could not read upload")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, ocr.MaxImageBytes+1))
	if err != nil {
		apiError(c, http.StatusBadRequest, "unreadable_file", "could not read upload")
		return
	}
	if int64(len(data)) > ocr.MaxImageBytes {
		apiError(c, http.StatusRequestEntityTooLarge, "image_too_large",
			fmt.Sprintf("image exceeds %d bytes", ocr.MaxImageBytes))
		return
	}
	if _, _, err := ocr.Load(data); err != nil {
		apiError(c, http.StatusUnsupportedMediaType, "unsupported_image", err.Error())
		return
	}

	allianceID := s.cfg.DefaultAllianceID
	if raw := c.PostForm("alliance_id"); raw != "" {
		id, err := security.ParseID(raw)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid_alliance_id", err.Error())
			return
		}
		allianceID = id
	}

	var typeOverride models.ScreenshotType
	if raw := c.PostForm("type"); raw != "" {
		t := models.ScreenshotType(raw)
		if _, ok := ocr.ParserFor(t); !ok {
			apiError(c, http.StatusBadRequest, "invalid_type", "unknown screenshot type "+raw)
			return
		}
		typeOverride = t
	}

	var capturedAt *time.Time
	if raw := c.PostForm("captured_at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid_captured_at", "captured_at must be RFC3339")
			return
		}
		utc := t.UTC()
		capturedAt = &utc
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	sc := &models.Screenshot{
		AllianceID: allianceID,
		Filename:   fileHeader.Filename,
		Note:       c.PostForm("note"),
	}
	id, err := s.store.CreateScreenshot(ctx, sc)
	if err != nil {
		s.log.Error("screenshot_create_failed", "error", err)
		apiError(c, http.StatusInternalServerError, "storage_error", "could not record upload")
		return
	}

	job := pipeline.Job{
		ScreenshotID: id,
		AllianceID:   allianceID,
		Filename:     fileHeader.Filename,
		Note:         c.PostForm("note"),
		Data:         data,
		TypeOverride: typeOverride,
		CapturedAt:   capturedAt,
	}
	if err := s.processor.Enqueue(job); err != nil {
		apiError(c, http.StatusServiceUnavailable, "queue_full", "processing queue is full, retry later")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"screenshot_id": id,
		"status":        models.StatusPending,
		"queue_depth":   s.processor.QueueDepth(),
	})
}

func (s *Server) getScreenshot(c *gin.Context) {
	id, err := security.ParseID(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	sc, err := s.store.ScreenshotByID(ctx, id)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "storage_error", "lookup failed")
		return
	}
	if sc == nil {
		apiError(c, http.StatusNotFound, "not_found", "screenshot not found")
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) listPlayers(c *gin.Context) {
	allianceID := s.cfg.DefaultAllianceID
	if raw := c.Query("alliance_id"); raw != "" {
		id, err := security.ParseID(raw)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid_alliance_id", err.Error())
			return
		}
		allianceID = id
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	players, err := s.store.ListPlayers(ctx, allianceID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "storage_error", "lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": players, "count": len(players)})
}

func (s *Server) getPlayer(c *gin.Context) {
	id, err := security.ParseID(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	player, aliases, err := s.store.PlayerByID(ctx, id)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "storage_error", "lookup failed")
		return
	}
	if player == nil {
		apiError(c, http.StatusNotFound, "not_found", "player not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": player, "aliases": aliases})
}

func (s *Server) playerHistory(c *gin.Context) {
	id, err := security.ParseID(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	ctx, cancel := s.ctx(c)
	defer cancel()

	history, err := s.store.PlayerHistory(ctx, id, limit)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "storage_error", "lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"player_id": id, "history": history})
}

func (s *Server) listEvents(c *gin.Context) {
	allianceID := s.cfg.DefaultAllianceID
	if raw := c.Query("alliance_id"); raw != "" {
		id, err := security.ParseID(raw)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid_alliance_id", err.Error())
			return
		}
		allianceID = id
	}
	variant := models.EventVariant(c.Query("variant"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	ctx, cancel := s.ctx(c)
	defer cancel()

	events, err := s.store.ListEvents(ctx, allianceID, variant, limit)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "storage_error", "lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (s *Server) eventRecords(c *gin.Context) {
	id, err := security.ParseID(c.Param("id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	records, err := s.store.EventRecords(ctx, id)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "storage_error", "lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_id": id, "records": records, "count": len(records)})
}

// foundryNoShows is derived at read time and briefly cached; signup and
// result tables both move underneath it.
func (s *Server) foundryNoShows(c *gin.Context) {
	eventID, err := security.ParseID(c.Param("event_id"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	cacheKey := fmt.Sprintf("report:noshow:%d", eventID)
	if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json", []byte(cached))
		return
	}

	noShows, err := s.store.FoundryNoShows(ctx, eventID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "storage_error", "lookup failed")
		return
	}

	body, err := json.Marshal(gin.H{"event_id": eventID, "no_shows": noShows, "count": len(noShows)})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "encoding_error", "could not encode report")
		return
	}
	_ = s.redis.Set(ctx, cacheKey, string(body), 60*time.Second)
	c.Data(http.StatusOK, "application/json", body)
}

func (s *Server) alliancePower(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days < 1 || days > 365 {
		days = 30
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	rows, err := s.store.AlliancePowerHistory(ctx, time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		apiError(c, http.StatusInternalServerError, "storage_error", "lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": rows, "count": len(rows)})
}

type mergeRequest struct {
	AllianceID  int64 `json:"alliance_id"`
	PrimaryID   int64 `json:"primary_id"`
	DuplicateID int64 `json:"duplicate_id"`
}

func (s *Server) mergePlayers(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "invalid_body", "expected alliance_id, primary_id, duplicate_id")
		return
	}
	if req.AllianceID <= 0 {
		req.AllianceID = s.cfg.DefaultAllianceID
	}
	if req.PrimaryID <= 0 || req.DuplicateID <= 0 {
		apiError(c, http.StatusBadRequest, "invalid_body", "primary_id and duplicate_id must be positive")
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.resolver.Merge(ctx, req.AllianceID, req.PrimaryID, req.DuplicateID); err != nil {
		apiError(c, http.StatusConflict, "merge_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"merged":       true,
		"primary_id":   req.PrimaryID,
		"duplicate_id": req.DuplicateID,
	})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	status := gin.H{
		"ok":          true,
		"queue_depth": s.processor.QueueDepth(),
	}
	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		status["ok"] = false
		status["redis"] = err.Error()
	}
	c.JSON(http.StatusOK, status)
}
