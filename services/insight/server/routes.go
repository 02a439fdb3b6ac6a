// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all insight routes with the router.
//
// Description:
//
//	Registers all /v1/devpulse/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Metric Endpoints:
//
//	GET  /v1/devpulse/trend - Daily series with fitted trend
//	GET  /v1/devpulse/dora/frequency - Deployment frequency
//	GET  /v1/devpulse/dora/leadtime - Lead time for changes
//	GET  /v1/devpulse/dora/throughput - PR merge throughput
//
// Report Endpoints:
//
//	GET  /v1/devpulse/reports/pulls - Pull-request dashboard page
//	GET  /v1/devpulse/reports/issues - Issue dashboard page
//	GET  /v1/devpulse/reports/commits - Commit-activity dashboard page
//	GET  /v1/devpulse/reports/runners - Runner-performance dashboard page
//
// Team Endpoints:
//
//	GET  /v1/devpulse/teams - Team rosters and mapping cache activity
//
// Seed Endpoints:
//
//	POST /v1/devpulse/seed - Start a synthetic data generation run
//	GET  /v1/devpulse/seed/status - Latest seed run state
//	GET  /v1/devpulse/seed/progress - Websocket progress stream
//
// Health Endpoints:
//
//	GET  /v1/devpulse/health - Health check
//	GET  /v1/devpulse/ready - Readiness check
//
// Example:
//
//	handlers := server.NewHandlers(st, teamCache, logger)
//
//	v1 := router.Group("/v1")
//	server.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	pulse := rg.Group("/devpulse")
	{
		// Trend queries
		pulse.GET("/trend", handlers.HandleTrend)

		// DORA metrics
		dora := pulse.Group("/dora")
		{
			dora.GET("/frequency", handlers.HandleDoraFrequency)
			dora.GET("/leadtime", handlers.HandleDoraLeadTime)
			dora.GET("/throughput", handlers.HandleDoraThroughput)
		}

		// Dashboard report pages
		reports := pulse.Group("/reports")
		{
			reports.GET("/pulls", handlers.HandleReportPulls)
			reports.GET("/issues", handlers.HandleReportIssues)
			reports.GET("/commits", handlers.HandleReportCommits)
			reports.GET("/runners", handlers.HandleReportRunners)
		}

		// Team attribution
		pulse.GET("/teams", handlers.HandleTeams)

		// Synthetic data generation
		seed := pulse.Group("/seed")
		{
			seed.POST("", handlers.HandleSeed)
			seed.GET("/status", handlers.HandleSeedStatus)
			seed.GET("/progress", handlers.HandleSeedProgress)
		}

		// Health checks
		pulse.GET("/health", handlers.HandleHealth)
		pulse.GET("/ready", handlers.HandleReady)
	}
}
