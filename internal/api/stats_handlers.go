package api

import (
	"github.com/gin-gonic/gin"

	"github.com/keshav323/digital-clock-application/internal"
)

func GetUserStats(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		summary, err := app.Stats().Summary(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err)
			return
		}

		HandleSuccess(c, app.Logger(), summary, nil)
	}
}

func GetPomodoroAnalytics(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		rollups, err := app.Stats().Rollups(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err)
			return
		}

		HandleSuccess(c, app.Logger(), rollups, nil)
	}
}
