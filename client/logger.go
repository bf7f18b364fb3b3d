package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Report results
const (
	ResultSuccess  = "SUCCESS"
	ResultRejected = "REJECTED"
	ResultSkipped  = "SKIPPED (wrong day)"
	ResultDryRun   = "DRY RUN"
	ResultFailed   = "FAILED"
)

// LogEntry holds everything printed in the run report and written to the
// structured log.
type LogEntry struct {
	RunID         string    `json:"run_id"`
	Command       string    `json:"command"`
	StartedAt     time.Time `json:"started_at"`
	TargetSite    string    `json:"target_site"`
	ExecutionMode string    `json:"execution_mode"`
	NetworkEnv    string    `json:"network"`

	// Schedule
	Today      string `json:"today,omitempty"`
	AllowedDay string `json:"allowed_day,omitempty"`
	TargetDate string `json:"target_date,omitempty"`
	Slot       string `json:"slot,omitempty"`

	// Connection state of the reservation request
	Protocol         string        `json:"protocol,omitempty"`
	StatusCode       int           `json:"status_code,omitempty"`
	DNSResolution    time.Duration `json:"dns_resolution,omitempty"`
	TCPHandshake     time.Duration `json:"tcp_handshake,omitempty"`
	TLSHandshake     time.Duration `json:"tls_handshake,omitempty"`
	TimeToFirstByte  time.Duration `json:"ttfb,omitempty"`
	TotalDuration    time.Duration `json:"total_duration,omitempty"`
	ConnectionReused bool          `json:"connection_reused,omitempty"`

	// Result summary
	Result string `json:"result"`
	Detail string `json:"detail,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

// NewLogEntry starts a report for command with a fresh run id.
func NewLogEntry(command string) LogEntry {
	return LogEntry{
		RunID:     uuid.NewString(),
		Command:   command,
		StartedAt: time.Now(),
	}
}

// ApplyTiming copies connection metrics from a request into the entry.
func (e *LogEntry) ApplyTiming(r *RequestResult) {
	if r == nil {
		return
	}
	e.Protocol = r.Protocol
	e.StatusCode = r.StatusCode
	e.DNSResolution = r.DNSDone - r.DNSStart
	e.TCPHandshake = r.ConnectDone - r.ConnectStart
	e.TLSHandshake = r.TLSHandshakeDone - r.TLSHandshakeStart
	e.TimeToFirstByte = r.GotFirstResponseByte
	e.TotalDuration = r.TotalDuration
	e.ConnectionReused = r.ConnectionReused
}

// PrintExecutionLog writes the coloured run report to w.
func PrintExecutionLog(w io.Writer, e LogEntry) {
	headerColor := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	sectionColor := color.New(color.FgHiYellow).SprintFunc()
	labelColor := color.New(color.FgWhite).SprintFunc()
	valueColor := color.New(color.FgHiWhite).SprintFunc()
	successColor := color.New(color.FgGreen, color.Bold).SprintFunc()
	warnColor := color.New(color.FgYellow, color.Bold).SprintFunc()
	errorColor := color.New(color.FgRed, color.Bold).SprintFunc()

	row := func(label, value string) {
		fmt.Fprintf(w, "%s : %s\n", labelColor(fmt.Sprintf("%-18s", label)), valueColor(value))
	}
	section := func(title string) {
		fmt.Fprintln(w, "\n"+sectionColor("--------------------------------------------------"))
		fmt.Fprintln(w, sectionColor(title))
		fmt.Fprintln(w, sectionColor("--------------------------------------------------"))
	}

	fmt.Fprintln(w, "\n"+headerColor("[CourtReserve Bot Execution Log]"))
	row("Run ID", e.RunID)
	row("Command", e.Command)
	row("Target Site", e.TargetSite)
	row("Execution Mode", e.ExecutionMode)
	row("Network", e.NetworkEnv)

	if e.Command == "reserve" {
		section("[1] Schedule")
		row("Today", e.Today)
		row("Allowed Day", e.AllowedDay)
		row("Target Date", e.TargetDate)
		row("Slot", e.Slot)

		if e.Protocol != "" || e.TotalDuration > 0 {
			section("[2] Connection State")
			row("Protocol", e.Protocol)
			row("Status Code", fmt.Sprintf("%d", e.StatusCode))
			row("DNS Resolution", fmt.Sprintf("%d ms", e.DNSResolution.Milliseconds()))
			row("TCP Handshake", fmt.Sprintf("%d ms", e.TCPHandshake.Milliseconds()))
			row("TLS Handshake", fmt.Sprintf("%d ms", e.TLSHandshake.Milliseconds()))
			row("Time To First Byte", fmt.Sprintf("%d ms", e.TimeToFirstByte.Milliseconds()))
			row("Total", fmt.Sprintf("%d ms", e.TotalDuration.Milliseconds()))
			row("Connection Reused", fmt.Sprintf("%v", e.ConnectionReused))
		}
	}

	section("[R] Result Summary")
	resColor := errorColor
	switch {
	case strings.HasPrefix(e.Result, ResultSuccess):
		resColor = successColor
	case strings.HasPrefix(e.Result, ResultSkipped), strings.HasPrefix(e.Result, ResultDryRun):
		resColor = warnColor
	}
	fmt.Fprintf(w, "%s : %s\n", labelColor(fmt.Sprintf("%-18s", "Result")), resColor(e.Result))
	if e.Detail != "" {
		row("Detail", e.Detail)
	}
	if e.Hint != "" {
		row("Hint", e.Hint)
	}
}

// WriteStructuredLog appends the entry as a JSON line to filename on fs.
func WriteStructuredLog(fs afero.Fs, e LogEntry, filename string) error {
	f, err := fs.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}
