// Package cycle runs periodic background reprocessing passes.
package cycle

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/rmm-mcp/pkg/types"
)

// Runner reprocesses every stored memory once. Satisfied by the
// reprocessing service.
type Runner interface {
	RunAll(ctx context.Context) ([]types.CycleReport, error)
}

// Start launches a periodic reprocessing worker. It returns when ctx is
// cancelled.
func Start(ctx context.Context, logger *log.Logger, interval time.Duration, runner Runner) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reports, err := runner.RunAll(ctx)
			if err != nil {
				logger.Warn("background reprocessing pass failed", "error", err)
				continue
			}
			if len(reports) > 0 {
				corrected := 0
				for _, rep := range reports {
					if rep.Outcome == types.OutcomeCorrected {
						corrected++
					}
				}
				logger.Info("reprocessing pass complete", "cycles", len(reports), "corrected", corrected)
			}
		}
	}
}
