package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"starling/internal/core"
)

// inspectCmd boots an agent, forces a collection, and reports heap
// statistics plus the installed global constructor surface.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Boot an agent and dump heap statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := core.NewAgent(cfg)
		if err != nil {
			return fmt.Errorf("creating agent: %w", err)
		}

		before := agent.Heap().Statistics()
		agent.CollectGarbage()
		after := agent.Heap().Statistics()

		logger.Info("heap",
			zap.Uint64("allocations", after.AllocationCount),
			zap.Uint64("collections", after.Collections),
			zap.Int("live_records_before_gc", before.LiveRecords),
			zap.Int("live_records_after_gc", after.LiveRecords),
		)

		for _, name := range []string{
			"Object", "Error", "TypeError", "RangeError", "ArrayBuffer",
			"Int8Array", "Uint8Array", "Float64Array", "WeakRef", "FinalizationRegistry",
		} {
			v, err := agent.Global(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-22s %s\n", name, v.Tag())
		}
		return nil
	},
}
