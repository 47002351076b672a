package rest

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"imgcdn/domain"
)

// parseTransformOptions reads the transform query parameters. The grammar is
// forgiving by design: out-of-range, non-numeric, or unknown values are
// silently dropped and the request proceeds as if the parameter were absent.
func parseTransformOptions(c echo.Context) domain.TransformOptions {
	opts := domain.TransformOptions{}

	opts.Width = parseDimension(c.QueryParam("w"))
	opts.Height = parseDimension(c.QueryParam("h"))

	if format, ok := domain.ParseFormat(c.QueryParam("fmt")); ok {
		opts.Format = format
	}

	if q, err := strconv.Atoi(c.QueryParam("q")); err == nil &&
		q >= domain.MinQuality && q <= domain.MaxQuality {
		opts.Quality = q
	}

	if fit, ok := domain.ParseFit(c.QueryParam("fit")); ok {
		opts.Fit = fit
	}

	return opts
}

func parseDimension(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < domain.MinDimension || n > domain.MaxDimension {
		return 0
	}
	return n
}
