package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OUgly/GEXCalculator/internal/store"
)

func notesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage analysis notes attached to symbols",
	}

	cmd.AddCommand(notesAddCmd())
	cmd.AddCommand(notesListCmd())
	cmd.AddCommand(notesRmCmd())

	return cmd
}

func notesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add SYMBOL TEXT...",
		Short: "Append a note for a symbol",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			note, err := st.AddNote(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Printf("note %d added for %s\n", note.ID, note.Symbol)
			return nil
		},
	}
}

func notesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list SYMBOL",
		Short: "List notes for a symbol, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			notes, err := st.ListNotes(args[0])
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				fmt.Println("no notes")
				return nil
			}
			for _, n := range notes {
				fmt.Printf("[%d] %s  %s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Text)
			}
			return nil
		},
	}
}

func notesRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete one note by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid note id %q", args[0])
			}

			st, err := store.Open(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			if err := st.DeleteNote(id); err != nil {
				return err
			}
			fmt.Printf("note %d deleted\n", id)
			return nil
		},
	}
}
