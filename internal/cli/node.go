package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lazypower/lethe/internal/retention"
	"github.com/lazypower/lethe/internal/store"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage knowledge nodes and their signals",
}

var (
	nodeAddID     string
	nodeAddType   string
	nodeAddPinned bool
	nodeTouchKind string
)

func init() {
	nodeAddCmd.Flags().StringVar(&nodeAddID, "id", "", "Node id (default: generated)")
	nodeAddCmd.Flags().StringVarP(&nodeAddType, "type", "t", retention.TypeNote, "Node type")
	nodeAddCmd.Flags().BoolVar(&nodeAddPinned, "pinned", false, "Mark the node as pinned, which raises its importance score")
	nodeTouchCmd.Flags().StringVarP(&nodeTouchKind, "kind", "k", retention.InteractionView, "Interaction kind (edit, select, connect, view)")

	nodeCmd.AddCommand(nodeAddCmd)
	nodeCmd.AddCommand(nodeTouchCmd)
	nodeCmd.AddCommand(nodeLinkCmd)
	nodeCmd.AddCommand(nodeFeelCmd)
	nodeCmd.AddCommand(nodeListCmd)
}

// withDB runs fn against the configured database.
func withDB(fn func(db *store.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

var nodeAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Create a node",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := nodeAddID
		if id == "" {
			id = uuid.NewString()
		}
		n := &retention.Node{
			ID:      id,
			Content: strings.Join(args, " "),
			Type:    nodeAddType,
			Pinned:  nodeAddPinned,
		}
		return withDB(func(db *store.DB) error {
			if err := db.CreateNode(n); err != nil {
				return err
			}
			fmt.Println(n.ID)
			return nil
		})
	},
}

var nodeTouchCmd = &cobra.Command{
	Use:   "touch <id>",
	Short: "Record an interaction with a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !retention.ValidInteraction(nodeTouchKind) {
			return fmt.Errorf("unknown interaction kind %q", nodeTouchKind)
		}
		return withDB(func(db *store.DB) error {
			return db.TouchNode(args[0], nodeTouchKind, time.Now().UTC())
		})
	},
}

var nodeLinkCmd = &cobra.Command{
	Use:   "link <id> <id>",
	Short: "Connect two nodes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *store.DB) error {
			return db.Link(args[0], args[1], time.Now().UTC())
		})
	},
}

var nodeFeelCmd = &cobra.Command{
	Use:   "feel <id> <intensity>",
	Short: "Record an emotional intensity in [0,1] for a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("parse intensity: %w", err)
		}
		return withDB(func(db *store.DB) error {
			return db.RecordEmotion(args[0], v, time.Now().UTC())
		})
	},
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *store.DB) error {
			nodes, err := db.ListNodes()
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				fmt.Println("No nodes.")
				return nil
			}
			for _, n := range nodes {
				pin := ""
				if n.Pinned {
					pin = " (pinned)"
				}
				fmt.Printf("  %s [%s]%s\n    %s\n", n.ID, n.Type, pin, truncate(n.Content, 80))
			}
			return nil
		})
	},
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
