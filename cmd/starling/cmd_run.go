package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"starling/internal/core"
	"starling/internal/heap"
	"starling/internal/types"
)

// runCmd evaluates a source file through whatever frontend the build links
// in. The core ships without one (the parser stack is an external
// collaborator), so out of the box this surfaces the engine's SyntaxError
// channel - which is itself a useful smoke test of the exception path.
var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Evaluate a JavaScript source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		agent, err := core.NewAgent(cfg)
		if err != nil {
			return fmt.Errorf("creating agent: %w", err)
		}
		logger.Info("agent created", zap.String("agent", agent.ID()))

		// Give scripts a print host function.
		err = agent.InstallHostFunction("print", func(a *core.Agent, this types.Value, fnArgs core.ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
			text, thrown := a.ToStringContent(fnArgs.Get(0), gc)
			if thrown != nil {
				return thrown.Completion()
			}
			fmt.Println(text)
			return types.NormalCompletion(types.Undefined())
		}, 1)
		if err != nil {
			return err
		}

		completion := agent.Evaluate(string(source))
		if completion.IsAbrupt() {
			msg := describeThrown(agent, completion.Value())
			logger.Error("evaluation threw", zap.String("error", msg))
			return fmt.Errorf("uncaught exception: %s", msg)
		}
		logger.Info("evaluation completed")
		return nil
	},
}

// describeThrown renders a thrown value for host-side reporting.
func describeThrown(agent *core.Agent, errValue types.Value) string {
	gc := agent.TopScope().Reborrow()
	defer gc.Release()
	s, thrown := agent.ToStringContent(errValue, gc)
	if thrown != nil {
		return errValue.Tag().String()
	}
	return s
}
