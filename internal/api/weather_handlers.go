package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetCurrentWeather(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		lat, err := strconv.ParseFloat(c.Param("lat"), 64)
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid latitude")
			return
		}
		lon, err := strconv.ParseFloat(c.Param("lon"), 64)
		if err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid longitude")
			return
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			HandleError(c, app.Logger(), errors.New("coordinates out of range"), 400, "Invalid coordinates")
			return
		}

		result, err := app.Weather().Current(c.Request.Context(), lat, lon)
		if err != nil {
			HandleServiceError(c, app.Logger(), err)
			return
		}

		meta := map[string]any{"cache_hit": result.CacheHit, "source": result.Entry.Source}
		HandleSuccess(c, app.Logger(), result.Entry, meta)
	}
}
