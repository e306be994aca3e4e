// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type statusResponse struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

func statusRoutes(app *fiber.App, serviceName, serviceVersion string) {
	handler := func(c *fiber.Ctx) error {
		return c.JSON(statusResponse{
			Status:  "OK",
			Name:    serviceName,
			Version: serviceVersion,
		})
	}

	app.Get("/-/healthz", handler)
	app.Get("/-/ready", handler)
}

func metricsRoute(app *fiber.App, gatherer prometheus.Gatherer) {
	app.Get("/-/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
