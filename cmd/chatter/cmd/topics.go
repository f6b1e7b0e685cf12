package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	// Topics are declared at package level; importing the packages registers them.
	_ "github.com/nfrund/chatter/internal/chat"
	_ "github.com/nfrund/chatter/internal/presence"
	"github.com/nfrund/chatter/internal/pubsub"
)

var topicsFormat string

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the pub/sub topics",
	Long: `List every topic the server publishes on its internal bus, with the
payload type and its JSON fields.

Output formats:
  table - Human-readable table format (default)
  json  - Machine-readable JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics := pubsub.Topics()
		switch topicsFormat {
		case "json":
			return displayTopicsJSON(cmd.OutOrStdout(), topics)
		case "table":
			displayTopicsTable(cmd.OutOrStdout(), topics)
			return nil
		default:
			return fmt.Errorf("unsupported output format %q, use table or json", topicsFormat)
		}
	},
}

func displayTopicsTable(out io.Writer, topics []pubsub.TopicInfo) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tPAYLOAD\tFIELDS\tDESCRIPTION")
	fmt.Fprintln(w, "----\t-------\t------\t-----------")
	for _, t := range topics {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.TypeName, strings.Join(t.Fields, ","), t.Description)
	}
}

func displayTopicsJSON(out io.Writer, topics []pubsub.TopicInfo) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"topics": topics,
		"count":  len(topics),
	})
}

func init() {
	rootCmd.AddCommand(topicsCmd)
	topicsCmd.Flags().StringVarP(&topicsFormat, "format", "f", "table", "Output format (table, json)")
}
