package commands

import (
	"context"
	"fmt"
	"os"

	"sailscrape/internal/config"

	"github.com/spf13/cobra"
)

// rt 는 PersistentPreRunE 에서 만들어지고 ExecuteContext 가 끝날 때 닫힌다.
var rt *runtime

var rootCmd = &cobra.Command{
	Use:           "sailscrape",
	Short:         "sailscrape scrapes cruise sailing prices and suite availability into raw storage.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		rt, err = newRuntime(cmd.Context(), cfg)
		return err
	},
}

// ExecuteContext 는 ctx 가 취소되면 진행 중인 run 을 멈추고,
// 에러가 있으면 stderr 에 출력한 뒤 exit 1 로 끝낸다.
func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if rt != nil {
		rt.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
