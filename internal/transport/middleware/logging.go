package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// RequestLogger логирует все запросы
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			event := log.Info()
			if err != nil {
				event = log.Error().Err(err)
			}

			event.Str("component", "http").
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Str("ip", c.RealIP()).
				Dur("latency", time.Since(start)).
				Msg("request")

			return err
		}
	}
}
