package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/wrestlepulse/internal/database"
	"github.com/TobiSchelling/wrestlepulse/internal/pipeline"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage the tracked wrestlers",
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		wrestlers, err := db.GetAllWrestlers()
		if err != nil {
			return err
		}
		if len(wrestlers) == 0 {
			fmt.Println("The roster is empty. Seed it with: wrestlepulse roster seed")
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Name", "Promotion", "Championship"})
		for _, w := range wrestlers {
			t.AppendRow(table.Row{w.ID, w.Name, w.Promotion, w.ChampionshipTitle})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d wrestlers", len(wrestlers)), "", ""})
		t.Render()
		return nil
	},
}

var (
	rosterPromotion    string
	rosterChampionship string
)

var rosterAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a wrestler",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		name := strings.TrimSpace(strings.Join(args, " "))
		if name == "" {
			return fmt.Errorf("name is required")
		}
		id, err := db.InsertWrestler(database.Wrestler{
			Name:              name,
			Promotion:         rosterPromotion,
			IsChampion:        rosterChampionship != "",
			ChampionshipTitle: rosterChampionship,
		})
		if err != nil {
			return err
		}
		if id == 0 {
			fmt.Printf("%s is already on the roster\n", name)
			return nil
		}
		fmt.Printf("Added [%d]: %s\n", id, name)
		return nil
	},
}

var rosterRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a wrestler and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid wrestler ID: %s", args[0])
		}
		w, err := db.GetWrestler(id)
		if err != nil {
			return notFound(err, "wrestler", id)
		}
		if err := db.DeleteWrestler(id); err != nil {
			return notFound(err, "wrestler", id)
		}
		fmt.Printf("Removed [%d]: %s\n", id, w.Name)
		return nil
	},
}

var rosterChampionCmd = &cobra.Command{
	Use:   "champion [id] [title]",
	Short: "Set a wrestler's championship; omit the title to clear it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid wrestler ID: %s", args[0])
		}
		title := ""
		if len(args) > 1 {
			title = strings.TrimSpace(args[1])
		}
		if err := db.SetChampion(id, title); err != nil {
			return notFound(err, "wrestler", id)
		}
		if title == "" {
			fmt.Printf("Cleared championship for [%d]\n", id)
		} else {
			fmt.Printf("[%d] now holds: %s\n", id, title)
		}
		return nil
	},
}

var rosterSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the roster from the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		added, err := pipeline.SeedRoster(db, cfg.Roster)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d of %d wrestlers (%d already present)\n", added, len(cfg.Roster), len(cfg.Roster)-added)
		return nil
	},
}

func init() {
	rosterAddCmd.Flags().StringVar(&rosterPromotion, "promotion", "", "Promotion the wrestler works for")
	rosterAddCmd.Flags().StringVar(&rosterChampionship, "championship", "", "Title currently held")

	rosterCmd.AddCommand(rosterListCmd)
	rosterCmd.AddCommand(rosterAddCmd)
	rosterCmd.AddCommand(rosterRemoveCmd)
	rosterCmd.AddCommand(rosterChampionCmd)
	rosterCmd.AddCommand(rosterSeedCmd)
}
