package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/persona"
)

var personasCmd = &cobra.Command{
	Use:     "personas",
	Short:   "Manage participant personas",
	Aliases: []string{"persona"},
}

var personaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		chain, err := personaChain(store)
		if err != nil {
			return err
		}
		personas, err := chain.ListPersonas(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTAGLINE")
		for _, p := range personas {
			tagline := p.Tagline
			if len(tagline) > 50 {
				tagline = tagline[:47] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name(), tagline)
		}
		return w.Flush()
	},
}

var personaShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a persona as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		chain, err := personaChain(store)
		if err != nil {
			return err
		}
		p, err := chain.GetPersona(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(p)
	},
}

var personaImportCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Import personas from a YAML file or directory into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		var personas []*core.Persona
		if info.IsDir() {
			catalog, err := persona.LoadDir(path)
			if err != nil {
				return err
			}
			if personas, err = catalog.ListPersonas(cmd.Context()); err != nil {
				return err
			}
		} else {
			loaded, err := persona.LoadFile(path)
			if err != nil {
				return err
			}
			for i := range loaded {
				personas = append(personas, &loaded[i])
			}
		}

		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		imported := make([]string, 0, len(personas))
		for _, p := range personas {
			if err := store.UpsertPersona(cmd.Context(), p); err != nil {
				return fmt.Errorf("failed to import %s: %w", p.ID, err)
			}
			imported = append(imported, p.ID)
		}

		if len(imported) == 0 {
			fmt.Println("No personas found.")
			return nil
		}
		fmt.Printf("Imported %d persona(s): %s\n", len(imported), strings.Join(imported, ", "))
		return nil
	},
}

var personaDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a stored persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeletePersona(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted persona: %s\n", args[0])
		return nil
	},
}

func init() {
	personasCmd.AddCommand(personaListCmd)
	personasCmd.AddCommand(personaShowCmd)
	personasCmd.AddCommand(personaImportCmd)
	personasCmd.AddCommand(personaDeleteCmd)
}
