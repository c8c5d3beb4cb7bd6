package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"starling/internal/core"
	"starling/internal/types"
)

var (
	stressAgents int
	stressRounds int
)

// stressCmd runs independent agents on separate goroutines, each with
// collect-at-every-safepoint enabled, churning objects and verifying that
// scoped handles survive relocation. Agents share nothing; this is the
// multi-agent shape the engine supports.
var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run a multi-agent GC stress pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		var g errgroup.Group
		for i := 0; i < stressAgents; i++ {
			agentNum := i
			g.Go(func() error {
				stressCfg := *cfg
				stressCfg.Heap.StressGC = true
				agent, err := core.NewAgent(&stressCfg)
				if err != nil {
					return fmt.Errorf("agent %d: %w", agentNum, err)
				}
				if err := stressOneAgent(agent, stressRounds); err != nil {
					return fmt.Errorf("agent %d: %w", agentNum, err)
				}
				stats := agent.Heap().Statistics()
				logger.Info("agent survived stress",
					zap.Int("agent", agentNum),
					zap.Uint64("collections", stats.Collections),
					zap.Uint64("allocations", stats.AllocationCount),
				)
				return nil
			})
		}
		return g.Wait()
	},
}

// stressOneAgent builds objects, scopes handles, forces relocation, and
// checks observable identity afterwards.
func stressOneAgent(agent *core.Agent, rounds int) error {
	gc := agent.TopScope().Reborrow()
	defer gc.Release()

	for round := 0; round < rounds; round++ {
		obj := gc.Scope(agent.OrdinaryObjectCreate(agent.Realm().Intrinsic(core.IntrObjectPrototype), gc))
		name := gc.Scope(agent.Heap().NewString(gc, fmt.Sprintf("stress-round-%d-payload", round)))

		key := types.StringKey("payload")
		if thrown := agent.CreateDataPropertyOrThrow(obj.Get(gc.NoGC()), key, name.Get(gc.NoGC()), gc); thrown != nil {
			return thrown
		}
		agent.CollectGarbage()

		n := gc.NoGC()
		got, thrown := agent.Get(obj.Get(n), key, obj.Get(n), gc)
		if thrown != nil {
			return thrown
		}
		if !agent.SameValue(gc.NoGC(), got, name.Get(gc.NoGC())) {
			return fmt.Errorf("round %d: payload identity lost across collection", round)
		}
	}
	return nil
}

func init() {
	stressCmd.Flags().IntVar(&stressAgents, "agents", 4, "number of concurrent agents")
	stressCmd.Flags().IntVar(&stressRounds, "rounds", 256, "allocation rounds per agent")
}
