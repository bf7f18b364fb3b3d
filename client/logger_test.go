package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintExecutionLog_Reserve(t *testing.T) {
	color.NoColor = true

	e := NewLogEntry("reserve")
	e.TargetSite = "https://reservations.example.test/Online/ReservationsApi/CreateReservation/12465?uiCulture=en-US"
	e.ExecutionMode = "live"
	e.NetworkEnv = "DIRECT (no proxy)"
	e.Today = "Saturday 2024-05-04"
	e.AllowedDay = "Saturday"
	e.TargetDate = "5/12/24 12:00:00 AM"
	e.ApplyTiming(&RequestResult{
		StatusCode:    200,
		Protocol:      "HTTP/1.1",
		DNSStart:      time.Millisecond,
		DNSDone:       4 * time.Millisecond,
		TotalDuration: 120 * time.Millisecond,
	})
	e.Result = ResultRejected
	e.Detail = `{"isValid": false}`

	var buf bytes.Buffer
	PrintExecutionLog(&buf, e)
	out := buf.String()

	assert.Contains(t, out, "[CourtReserve Bot Execution Log]")
	assert.Contains(t, out, e.RunID)
	assert.Contains(t, out, "[1] Schedule")
	assert.Contains(t, out, "5/12/24 12:00:00 AM")
	assert.Contains(t, out, "[2] Connection State")
	assert.Contains(t, out, "3 ms")
	assert.Contains(t, out, "120 ms")
	assert.Contains(t, out, ResultRejected)
	assert.Contains(t, out, `{"isValid": false}`)
}

func TestPrintExecutionLog_Login(t *testing.T) {
	color.NoColor = true

	e := NewLogEntry("login")
	e.Result = ResultFailed
	e.Hint = "check the login page"

	var buf bytes.Buffer
	PrintExecutionLog(&buf, e)
	out := buf.String()

	assert.NotContains(t, out, "[1] Schedule")
	assert.NotContains(t, out, "[2] Connection State")
	assert.Contains(t, out, ResultFailed)
	assert.Contains(t, out, "check the login page")
}

func TestWriteStructuredLog(t *testing.T) {
	fs := afero.NewMemMapFs()

	first := NewLogEntry("login")
	first.Result = ResultSuccess
	second := NewLogEntry("reserve")
	second.Result = ResultSkipped

	require.NoError(t, WriteStructuredLog(fs, first, "runs.jsonl"))
	require.NoError(t, WriteStructuredLog(fs, second, "runs.jsonl"))

	f, err := fs.Open("runs.jsonl")
	require.NoError(t, err)
	defer f.Close()

	var got []LogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e LogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		got = append(got, e)
	}
	require.NoError(t, sc.Err())
	require.Len(t, got, 2)
	assert.Equal(t, first.RunID, got[0].RunID)
	assert.Equal(t, "reserve", got[1].Command)
	assert.Equal(t, ResultSkipped, got[1].Result)
	assert.NotEqual(t, got[0].RunID, got[1].RunID)
}

func TestWriteStructuredLog_ReadOnly(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	assert.Error(t, WriteStructuredLog(fs, NewLogEntry("login"), "runs.jsonl"))
}
