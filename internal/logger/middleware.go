// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	forwardedHostHeaderKey = "x-forwarded-host"
	forwardedForHeaderKey  = "x-forwarded-for"
	requestIDHeaderName    = "x-request-id"
	userAgentHeaderKey     = "user-agent"
	requestIDPropertyKey   = "requestId"

	IncomingRequestMessage  = "incoming request"
	RequestCompletedMessage = "request completed"
)

// RequestMiddlewareLogger is a fiber middleware to log all requests whose path does not start with
// one of excludedPrefix. It logs the incoming request and, when the request is completed, its
// outcome and latency.
// The request id, read from the x-request-id header or generated, is echoed in the response and
// attached as property to both entries and to the logger stored in the request user context.
func RequestMiddlewareLogger(logger Logger, excludedPrefix []string) fiber.Handler {
	return func(fiberCtx *fiber.Ctx) error {
		for _, prefix := range excludedPrefix {
			if strings.HasPrefix(fiberCtx.Path(), prefix) {
				return fiberCtx.Next()
			}
		}

		start := time.Now()
		requestID := getReqID(fiberCtx)
		fiberCtx.Set(requestIDHeaderName, requestID)

		ctx := WithContext(fiberCtx.UserContext(), logger)
		ctx = WithProperties(ctx, map[string]any{requestIDPropertyKey: requestID})
		fiberCtx.SetUserContext(ctx)
		requestLogger := FromContext(ctx)

		requestLogger.Trace(IncomingRequestMessage, requestArgs(fiberCtx)...)
		err := fiberCtx.Next()

		statusCode, bodySize := responseOutcome(fiberCtx, err)
		args := append(requestArgs(fiberCtx),
			"statusCode", statusCode,
			"bytes", bodySize,
			"responseTime", float64(time.Since(start).Microseconds())/1000,
		)
		requestLogger.Log(completedLevel(statusCode), RequestCompletedMessage, args...)

		return err
	}
}

func getReqID(fiberCtx *fiber.Ctx) string {
	if requestID := fiberCtx.Get(requestIDHeaderName); requestID != "" {
		return requestID
	}
	return uuid.NewString()
}

func requestArgs(fiberCtx *fiber.Ctx) []any {
	return []any{
		"method", fiberCtx.Method(),
		"path", string(fiberCtx.Request().URI().RequestURI()),
		"host", removePort(string(fiberCtx.Request().Host())),
		"forwardedHost", fiberCtx.Get(forwardedHostHeaderKey),
		"ip", fiberCtx.Get(forwardedForHeaderKey, fiberCtx.IP()),
		"userAgent", fiberCtx.Get(userAgentHeaderKey),
	}
}

// responseOutcome returns the status code and the body size of the response. Errors returned by
// the handlers are turned into a response by the fiber error handler only after the middleware
// chain, so their outcome is derived from the error.
func responseOutcome(fiberCtx *fiber.Ctx, err error) (int, int) {
	if err != nil {
		fiberErr := &fiber.Error{}
		if errors.As(err, &fiberErr) {
			return fiberErr.Code, len(fiberErr.Message)
		}
		return fiber.StatusInternalServerError, len(err.Error())
	}

	bodySize := len(fiberCtx.Response().Body())
	if content := fiberCtx.GetRespHeader(fiber.HeaderContentLength); content != "" {
		if length, err := strconv.Atoi(content); err == nil {
			bodySize = length
		}
	}
	return fiberCtx.Response().StatusCode(), bodySize
}

func completedLevel(statusCode int) Level {
	if statusCode >= fiber.StatusInternalServerError {
		return WARN
	}
	return INFO
}

func removePort(host string) string {
	if hostname, _, err := net.SplitHostPort(host); err == nil {
		return hostname
	}
	return host
}
