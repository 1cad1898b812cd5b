package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keshav323/digital-clock-application/internal"
	"github.com/keshav323/digital-clock-application/internal/service"
)

func StartSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var body service.StartRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		app.Logger().Infof("Parsed StartRequest: %+v", body)

		session, err := app.Timer().Start(c.Request.Context(), user.ID, &body)
		if err != nil {
			HandleServiceError(c, app.Logger(), err)
			return
		}

		HandleSuccess(c, app.Logger(), session, nil)
	}
}

func PauseSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var body service.PauseRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		paused, err := app.Timer().Pause(c.Request.Context(), user.ID, &body)
		if err != nil {
			HandleServiceError(c, app.Logger(), err)
			return
		}

		HandleSuccess(c, app.Logger(), nil, map[string]any{"paused_seconds": paused})
	}
}

func CompleteSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var body service.CompleteRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		result, err := app.Timer().Complete(c.Request.Context(), user.ID, &body)
		if err != nil {
			HandleServiceError(c, app.Logger(), err)
			return
		}

		HandleSuccess(c, app.Logger(), result, nil)
	}
}

func StopSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var body service.StopRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		result, err := app.Timer().Stop(c.Request.Context(), user.ID, &body)
		if err != nil {
			HandleServiceError(c, app.Logger(), err)
			return
		}

		HandleSuccess(c, app.Logger(), result, nil)
	}
}

func GetCurrentSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		status, err := app.Timer().Current(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err)
			return
		}

		HandleSuccess(c, app.Logger(), status, nil)
	}
}

func GetSessionHistory(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var kind *internal.SessionKind
		if k := c.Query("kind"); k != "" {
			sk := internal.SessionKind(k)
			kind = &sk
		}

		from, err := parseTimeParam(c.Query("date_from"))
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid 'date_from'")
			return
		}
		to, err := parseTimeParam(c.Query("date_to"))
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid 'date_to'")
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		page, err := app.Timer().History(c.Request.Context(), user.ID, kind, from, to, limit, offset)
		if err != nil {
			HandleServiceError(c, app.Logger(), err)
			return
		}

		meta := map[string]any{"total": page.Total, "limit": page.Limit, "offset": page.Offset}
		HandleSuccess(c, app.Logger(), page.Sessions, meta)
	}
}

// parseTimeParam accepts RFC 3339 timestamps or bare dates.
func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t, err = time.Parse("2006-01-02", v)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}
