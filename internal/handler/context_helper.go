package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice-api/internal/middleware"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
	"github.com/noah-isme/sma-backoffice-api/pkg/response"
)

const dateLayout = "2006-01-02"

func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// parseDateParam reads an optional YYYY-MM-DD query value as midnight in loc.
func parseDateParam(c *gin.Context, key string, loc *time.Location) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	parsed, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, key+" must use YYYY-MM-DD")
	}
	return &parsed, nil
}

func parseBoolParam(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, key+" must be true or false")
	}
	return &value, nil
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func parseFinanceFilter(c *gin.Context) (models.StudentFinanceFilter, error) {
	filter := models.StudentFinanceFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		ClassID:   strings.TrimSpace(c.Query("classId")),
		ProgramID: strings.TrimSpace(c.Query("programId")),
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "limit", 20),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	suspended, err := parseBoolParam(c, "suspended")
	if err != nil {
		return filter, err
	}
	cleared, err := parseBoolParam(c, "cleared")
	if err != nil {
		return filter, err
	}
	filter.Suspended = suspended
	filter.Cleared = cleared
	return filter, nil
}

// respondReport writes a computed report with its cache flag in the response meta.
func respondReport(c *gin.Context, data interface{}, cacheHit bool) {
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, data, nil, middleware.ExtractMeta(c))
}
