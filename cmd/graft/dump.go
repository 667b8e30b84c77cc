package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"graft/internal/diagfmt"
	"graft/internal/driver"
	"graft/internal/elab"
	"graft/internal/source"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <file.graft>",
	Short: "Inspect an elaboration dump",
	Long: `Dump decodes one elaboration dump and prints its node tree. With --shim
it elaborates the dump without tool rounds and prints the accumulated
foreign text instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	dumpCmd.Flags().Bool("shim", false, "print the accumulated foreign text instead of the tree")
	dumpCmd.Flags().Bool("marks", false, "with --shim, list every mark with its host origin")
}

func runDump(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	showShim, err := cmd.Flags().GetBool("shim")
	if err != nil {
		return fmt.Errorf("failed to get shim flag: %w", err)
	}
	showMarks, err := cmd.Flags().GetBool("marks")
	if err != nil {
		return fmt.Errorf("failed to get marks flag: %w", err)
	}
	if showMarks && !showShim {
		return fmt.Errorf("marks flag requires the shim flag")
	}

	if !showShim {
		fs := source.NewFileSet()
		root, _, err := driver.LoadDump(fs, path)
		if err != nil {
			return err
		}
		switch format {
		case "pretty":
			diagfmt.FormatTreePretty(os.Stdout, root, fs)
			return nil
		case "json":
			return diagfmt.FormatTreeJSON(os.Stdout, root)
		default:
			return fmt.Errorf("unknown format: %s", format)
		}
	}

	// Накопленный текст существует только после элаборации.
	opts := driver.CheckOptions{Elab: elab.DefaultOptions()}
	opts.Elab.Diagnostics = false
	res, err := driver.Check(cmd.Context(), path, opts)
	if err != nil {
		return err
	}

	if res.Bag.HasErrors() || res.Bag.HasWarnings() {
		colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return err
		}
		useColor := colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stderr))
		diagfmt.Pretty(os.Stderr, res.Bag, res.FileSet, diagfmt.PrettyOpts{
			Color:   useColor,
			Context: 2,
		})
	}

	switch format {
	case "pretty":
		fmt.Fprint(os.Stdout, res.Shim.Text())
		if showMarks {
			fmt.Fprintln(os.Stdout, "\nmarks:")
			printMarks(os.Stdout, res)
		}
		return nil
	case "json":
		out := shimOutput{
			Path:     res.Path,
			Text:     res.Shim.Text(),
			Sections: res.Sections,
		}
		if showMarks {
			for _, mk := range res.Shim.Map().Marks() {
				out.Marks = append(out.Marks, markOutput{Offset: mk.ShimStart, Origin: mk.Origin})
			}
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// shimOutput описывает результат элаборации для JSON-вывода.
type shimOutput struct {
	Path     string       `json:"path"`
	Text     string       `json:"text"`
	Sections int          `json:"sections"`
	Marks    []markOutput `json:"marks,omitempty"`
}

type markOutput struct {
	Offset uint32      `json:"offset"`
	Origin source.Span `json:"origin"`
}

// printMarks lists each mark as "shim offset <- host position".
func printMarks(out io.Writer, res *driver.Result) {
	for _, mk := range res.Shim.Map().Marks() {
		if mk.Origin.IsZero() {
			fmt.Fprintf(out, "%6d  <synthesized>\n", mk.ShimStart)
			continue
		}
		start, end := res.FileSet.Resolve(mk.Origin)
		fmt.Fprintf(out, "%6d  %d:%d-%d:%d\n", mk.ShimStart, start.Line, start.Col, end.Line, end.Col)
	}
}
