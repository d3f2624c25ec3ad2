package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/donustur/donustur/internal/bins"
)

var (
	qrOutput string
	qrSize   int
)

var binCmd = &cobra.Command{
	Use:   "bin",
	Short: "Manage recycling bins",
}

var binQRCmd = &cobra.Command{
	Use:   "qr <bin-id>",
	Short: "Write a bin's QR code as PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		bin, err := bins.NewService(bins.NewPostgresRepository(db)).Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		png, err := bins.NewQRGenerator(cfg.PublicBaseURL, qrSize).BinQR(bin.ID)
		if err != nil {
			return err
		}
		out := qrOutput
		if out == "" {
			out = bin.ID + ".png"
		}
		if err := os.WriteFile(out, png, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", out, bin.Location)
		return nil
	},
}

func init() {
	binQRCmd.Flags().StringVarP(&qrOutput, "output", "o", "", "output file (default <bin-id>.png)")
	binQRCmd.Flags().IntVar(&qrSize, "size", 512, "image size in pixels")
	binCmd.AddCommand(binQRCmd)
}
