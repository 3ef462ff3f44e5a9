package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/chapter-report/internal/render"
)

// emit writes payload as JSON, or the workbook built by book as xlsx, to
// --output or stdout.
func emit(cmd *cobra.Command, payload any, book func() (*xlsx.File, error)) error {
	if outputFormat != "json" && outputFormat != "xlsx" {
		return eris.Errorf("unknown format %q: want json or xlsx", outputFormat)
	}

	var w io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "create %s", outputPath)
		}
		defer f.Close()
		w = f
	}

	if outputFormat == "xlsx" {
		wb, err := book()
		if err != nil {
			return err
		}
		return render.Write(wb, w)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(payload), "encode json")
}
