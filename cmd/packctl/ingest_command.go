package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/seatpack-sync/internal/model"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <snapshot.json|->",
		Short: "Run one scrape snapshot through the sync pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			sum, err := a.Sync.Process(cmd.Context(), snap)
			if sum != nil {
				if werr := writeJSON(cmd, sum); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

// readSnapshot decodes a snapshot from path, or from stdin when path is "-".
func readSnapshot(stdin io.Reader, path string) (*model.Snapshot, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		r = f
	}
	var snap model.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
