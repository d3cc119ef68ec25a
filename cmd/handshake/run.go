package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/export"
)

var runTurns int

var runCmd = &cobra.Command{
	Use:   "run [participant-a] [participant-b]",
	Short: "Run a simulation and print it as it happens",
	Long: `Run a conversation between two personas synchronously.

Examples:
  handshake run maya jonas
  handshake run maya priya --turns 4
  handshake run maya jonas --provider mock`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		engine, _, _, err := newEngine(ctx, store)
		if err != nil {
			return err
		}

		sim, err := engine.CreateSimulation(ctx, core.NewSimulationConfig{
			ParticipantAID: args[0],
			ParticipantBID: args[1],
			MaxTurns:       runTurns,
		})
		if err != nil {
			return err
		}

		fmt.Printf("\nSimulation %s: %s and %s (up to %d exchanges)\n",
			shortID(sim.ID), sim.AgentA.Persona.Name(), sim.AgentB.Persona.Name(), sim.MaxTurns)

		state, runErr := engine.Run(ctx, sim, func(entry core.TranscriptEntry, s *core.SimulationState) {
			printEntry(sim, len(s.Transcript), entry)
		})

		if ctx.Err() != nil {
			fmt.Println("\nInterrupted. Partial result saved.")
		}
		if state != nil {
			printResult(state.Thoughts, state.TerminationReason, state.Analysis, sim.AgentA.Persona.Name())
		}
		if runErr != nil {
			return fmt.Errorf("simulation failed: %w", runErr)
		}

		fmt.Printf("\nView again with: handshake show %s\n", shortID(sim.ID))
		return nil
	},
}

func init() {
	runCmd.Flags().IntVarP(&runTurns, "turns", "t", 0, "Maximum exchanges (default from config, at most 15)")
}

func printEntry(sim *core.Simulation, n int, entry core.TranscriptEntry) {
	name := sim.AgentA.Persona.Name()
	if entry.Speaker == core.SpeakerB {
		name = sim.AgentB.Persona.Name()
	}
	fmt.Printf("\n[%d] %s\n", n, name)
	fmt.Println(strings.Repeat("-", 40))
	fmt.Println(entry.Text)
}

func printResult(thoughts []core.ThoughtEntry, reason *string, analysis *core.AnalysisResult, thinker string) {
	if len(thoughts) > 0 {
		fmt.Printf("\n%s's private thoughts:\n", thinker)
		for _, th := range thoughts {
			fmt.Printf("  turn %d: %s\n", th.TurnNumber, th.Text)
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 40))
	if reason != nil {
		fmt.Printf("Ended: %s\n", *reason)
	}
	if analysis != nil {
		fmt.Printf("Compatibility score: %d/100\n", analysis.Score)
		for _, t := range analysis.Takeaways {
			fmt.Printf("  - %s\n", t)
		}
	}
}

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List simulations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		sims, err := store.ListSimulations(cmd.Context(), listLimit, 0)
		if err != nil {
			return err
		}

		if len(sims) == 0 {
			fmt.Println("No simulations found. Start one with: handshake run maya jonas")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPARTICIPANTS\tSTATUS\tREPLIES\tSCORE\tCREATED")
		for _, s := range sims {
			score := "-"
			if s.Score != nil {
				score = fmt.Sprintf("%d", *s.Score)
			}
			fmt.Fprintf(w, "%s\t%s / %s\t%s\t%d\t%s\t%s\n",
				shortID(s.ID),
				s.AgentA,
				s.AgentB,
				s.Status,
				s.EntryCount,
				score,
				s.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum simulations to list")
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a simulation transcript and result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := findSimulationByPrefix(ctx, store, args[0])
		if err != nil {
			return err
		}
		sim, err := store.GetSimulation(ctx, id)
		if err != nil {
			return err
		}

		fmt.Printf("\nSimulation: %s\n", sim.ID)
		fmt.Printf("   Status: %s\n", sim.Status)
		fmt.Printf("   Agent A: %s (%s)\n", sim.AgentA.Persona.Name(), sim.ParticipantAID)
		fmt.Printf("   Agent B: %s (%s)\n", sim.AgentB.Persona.Name(), sim.ParticipantBID)
		fmt.Printf("   Max turns: %d\n", sim.MaxTurns)
		fmt.Printf("   Created: %s\n", sim.CreatedAt.Format(time.RFC3339))
		if sim.Error != "" {
			fmt.Printf("   Error: %s\n", sim.Error)
		}

		for i, entry := range sim.Transcript {
			printEntry(sim, i+1, entry)
		}

		var reason *string
		if sim.TerminationReason != "" {
			reason = &sim.TerminationReason
		}
		var analysis *core.AnalysisResult
		if sim.Score != nil {
			analysis = &core.AnalysisResult{Score: *sim.Score, Takeaways: sim.Takeaways}
		}
		printResult(sim.Thoughts, reason, analysis, sim.AgentA.Persona.Name())
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a simulation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := findSimulationByPrefix(ctx, store, args[0])
		if err != nil {
			return err
		}
		if err := store.DeleteSimulation(ctx, id); err != nil {
			return err
		}

		fmt.Printf("Deleted simulation: %s\n", id)
		return nil
	},
}

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export a simulation to a file",
	Long: `Export a simulation to markdown, PDF, or JSON.

Examples:
  handshake export abc123
  handshake export abc123 --format pdf
  handshake export abc123 -f json -o run.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		exporter, err := export.GetExporter(export.Format(exportFormat))
		if err != nil {
			return err
		}

		id, err := findSimulationByPrefix(ctx, store, args[0])
		if err != nil {
			return err
		}
		sim, err := store.GetSimulation(ctx, id)
		if err != nil {
			return err
		}

		outputPath := exportOutput
		if outputPath == "" {
			outputPath = export.GenerateFilename(sim, exporter.FileExtension())
		}

		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		defer file.Close()

		if err := exporter.Export(sim, file); err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		fmt.Printf("Exported to: %s\n", outputPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatMarkdown), "Export format: markdown, pdf or json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path")
}
