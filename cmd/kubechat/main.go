package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

func main() {
	root := &cobra.Command{
		Use:           "kubechat",
		Short:         "Conversational Kubernetes assistant",
		Long:          "KubeChat answers questions about a Kubernetes cluster and runs safety-gated operations on it, driven by an LLM.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newWorkerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
