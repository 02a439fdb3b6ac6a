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
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Default rate limit settings. The API serves a local dashboard, so a
// single process-wide bucket is enough; there is no per-client state.
const (
	DefaultRateLimit = 30.0
	DefaultRateBurst = 60
)

// RateLimit returns middleware enforcing a global token-bucket limit
// across all endpoints.
//
// # Description
//
//	Requests pass while the bucket has tokens; the rest are rejected
//	with 429 immediately rather than queued, so a runaway dashboard
//	polling loop cannot stack up blocked requests.
//
// # Inputs
//
//	rps - Sustained requests per second; values <= 0 select DefaultRateLimit.
//	burst - Bucket size; values <= 0 select DefaultRateBurst.
//
// # Outputs
//
//	gin.HandlerFunc - The middleware.
//
// # Examples
//
//	router.Use(server.RateLimit(0, 0)) // defaults
//
// # Limitations
//
//	The bucket is shared by all clients. That is the point for a
//	single-user tool, but it makes the limiter unsuitable as-is for a
//	multi-tenant deployment.
//
// # Thread Safety
//
//	Safe for concurrent use.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		rps = DefaultRateLimit
	}
	if burst <= 0 {
		burst = DefaultRateBurst
	}
	return RateLimitUsing(rate.NewLimiter(rate.Limit(rps), burst))
}

// RateLimitUsing returns middleware backed by a caller-owned limiter.
//
// # Description
//
//	Same rejection behavior as RateLimit, but the caller keeps the
//	*rate.Limiter and can retune it while the server runs (for example
//	from a config reload via SetLimit and SetBurst).
//
// # Inputs
//
//	limiter - The shared token bucket. Must not be nil.
//
// # Outputs
//
//	gin.HandlerFunc - The middleware.
//
// # Thread Safety
//
//	Safe for concurrent use; rate.Limiter serializes its own state.
func RateLimitUsing(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "Rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
