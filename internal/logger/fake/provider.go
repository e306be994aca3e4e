// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"github.com/mia-platform/sharedlog/internal/logger"
)

// Provider hands out named views of a single recording Logger, or fails with Err.
type Provider struct {
	Log *Logger
	Err error
}

// NewProvider returns a Provider backed by log.
func NewProvider(log *Logger) *Provider {
	return &Provider{Log: log}
}

func (p *Provider) Logger(category string) (logger.Logger, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Log.WithName(category), nil
}
