package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/born-ml/gpgpu"
	"github.com/born-ml/gpgpu/backend/webgpu"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: file descriptors fit in int
}

// printReport lists what was generated, as a table on a terminal and as
// plain lines otherwise.
func printReport(w io.Writer, target gpgpu.Target, results []*gpgpu.GenerateResult, written []string) {
	if !isTerminal(w) {
		for i, res := range results {
			fmt.Fprintf(w, "%s: %d kernels, %d omitted\n", written[i], len(res.Report.Kernels), len(res.Report.Omitted))
		}
		return
	}

	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("File", "Kernels", "Mirrors", "Entries", "Omitted")
	for i, res := range results {
		r := res.Report
		table.Row(written[i], list(r.Kernels), strconv.Itoa(len(r.Mirrors)), list(r.Entries), list(r.Omitted))
	}
	fmt.Fprintln(w, titleStyle.Render("gpgpu "+target.String()+" build"))
	fmt.Fprintln(w, table.Render())
}

// printAdapters lists the GPU adapters kernels can be dispatched to.
func printAdapters(w io.Writer, adapters []webgpu.Adapter) {
	if !isTerminal(w) {
		for _, a := range adapters {
			fmt.Fprintf(w, "%s (%s): %s, %s\n", a.Device, a.Vendor, a.Backend, a.Type)
		}
		return
	}

	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Device", "Vendor", "Backend", "Type", "Description")
	for _, a := range adapters {
		table.Row(a.Device, a.Vendor, a.Backend, a.Type, a.Description)
	}
	fmt.Fprintln(w, titleStyle.Render("GPU adapters"))
	fmt.Fprintln(w, table.Render())
}

func list(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
