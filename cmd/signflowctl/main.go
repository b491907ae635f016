// Command signflowctl runs maintenance tasks against the signflow store.
package main

import (
	"os"

	"github.com/signflow/signflow-server/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
