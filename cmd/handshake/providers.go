package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alienxp03/handshake/internal/llm"
)

var checkProviders bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured language model providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := appConfig.CreateRegistry(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		if checkProviders {
			fmt.Fprintln(w, "NAME\tDEFAULT\tHEALTHY\tLATENCY\tERROR")
		} else {
			fmt.Fprintln(w, "NAME\tDEFAULT\tAVAILABLE")
		}

		for _, p := range registry.List() {
			isDefault := ""
			if p.Name() == appConfig.LLM.Provider {
				isDefault = "*"
			}
			if !checkProviders {
				fmt.Fprintf(w, "%s\t%s\t%v\n", p.Name(), isDefault, p.Available())
				continue
			}

			status := llm.CheckHealth(cmd.Context(), p)
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
				p.Name(), isDefault, status.Available, status.ResponseTime.Round(time.Millisecond), status.Error)
		}
		return w.Flush()
	},
}

func init() {
	providersCmd.Flags().BoolVar(&checkProviders, "check", false, "Send a health check prompt to each provider")
}
