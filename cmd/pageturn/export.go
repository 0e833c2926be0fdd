package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/pageturn/internal/export"
	"github.com/jackzampolin/pageturn/internal/output"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export captured books",
}

var exportPDFCmd = &cobra.Command{
	Use:   "pdf <asin>",
	Short: "Bundle a book's captured pages into a PDF",
	Long: `Bundle a book's captured pages into a single PDF, one page per
screenshot in capture order. The file is written next to the book's
metadata as <asin>.pdf.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		path, err := export.Book(h, args[0])
		if err != nil {
			return err
		}
		pages, err := export.PageCount(path)
		if err != nil {
			return err
		}
		return output.Print(map[string]any{
			"asin":  args[0],
			"path":  path,
			"pages": pages,
		})
	},
}

func init() {
	exportCmd.AddCommand(exportPDFCmd)

	rootCmd.AddCommand(exportCmd)
}
