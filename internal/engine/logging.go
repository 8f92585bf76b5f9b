package engine

import (
	"github.com/sirupsen/logrus"
)

func (e *Engine) logEntry() *logrus.Entry {
	entry := e.log.WithComponent("engine")
	if e.cfg != nil {
		entry = entry.WithField("mode", e.cfg.Runtime.Mode)
	}
	return entry
}

func (e *Engine) assetEntry(asset string) *logrus.Entry {
	return e.logEntry().WithField("asset", asset)
}
