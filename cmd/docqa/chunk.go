package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

func chunkCMD() *cobra.Command {
	var size, overlap, preview int

	cmd := &cobra.Command{
		Use:   "chunk FILE",
		Short: "Show how a text file would be split into chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			chunks, err := usecases.ChunkDocument(entities.Document{
				Name:    filepath.Base(args[0]),
				Content: string(data),
			}, size, overlap)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d chunks (size %d, overlap %d)\n", filepath.Base(args[0]), len(chunks), size, overlap)
			for _, c := range chunks {
				fmt.Fprintf(out, "[%d] %d words: %s\n", c.Position, len(strings.Fields(c.Content)), usecases.Snippet(c.Content, preview))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", usecases.DefaultChunkSize, "words per chunk")
	cmd.Flags().IntVar(&overlap, "overlap", usecases.DefaultChunkOverlap, "words shared by consecutive chunks")
	cmd.Flags().IntVar(&preview, "preview", 60, "characters of each chunk to print")
	return cmd
}
