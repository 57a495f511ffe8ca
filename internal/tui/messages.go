package tui

import (
	"github.com/HassDhia/deep-agent-sti/internal/cache"
)

type runsLoadedMsg struct {
	runs    []cache.Run
	bundles []cache.BundleSummary
}

type loadErrMsg struct {
	err error
}

type recheckDoneMsg struct {
	run cache.Run
	err error
}
